// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lower

import (
	"log/slog"

	"github.com/pkg/errors"
)

type (
	// Option configures an engine.
	Option interface {
		lowerOption()
	}

	// RegistryOption sets the registry of strategies used to lower operations.
	RegistryOption struct {
		Registry *Registry
	}

	// LoggerOption sets the logger used to trace the lowering.
	LoggerOption struct {
		Logger *slog.Logger
	}
)

func (RegistryOption) lowerOption() {}
func (LoggerOption) lowerOption()   {}

// WithRegistry returns an option to lower operations with the strategies of a registry.
func WithRegistry(r *Registry) Option {
	return RegistryOption{Registry: r}
}

// WithLogger returns an option to trace the lowering with a logger.
func WithLogger(logger *slog.Logger) Option {
	return LoggerOption{Logger: logger}
}

func (e *Engine) processOptions(options []Option) error {
	for _, option := range options {
		switch optionT := option.(type) {
		case RegistryOption:
			if optionT.Registry == nil {
				return errors.Errorf("nil registry")
			}
			e.registry = optionT.Registry
		case LoggerOption:
			e.logger = optionT.Logger
		default:
			return errors.Errorf("option of type %T not supported", optionT)
		}
	}
	return nil
}
