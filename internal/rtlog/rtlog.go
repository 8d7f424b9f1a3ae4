// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package rtlog provides the runtime's structured logger.
package rtlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

func init() {
	logger, _ = zap.NewDevelopment()
}

// Logger returns the global runtime logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the global runtime logger, e.g. with a production
// config once CLI flags are parsed.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Debug logs at debug level.
func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }

// Info logs at info level.
func Info(msg string, fields ...zap.Field) { Logger().Info(msg, fields...) }

// Warn logs at warn level.
func Warn(msg string, fields ...zap.Field) { Logger().Warn(msg, fields...) }

// Error logs at error level.
func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }

// With returns a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger { return Logger().With(fields...) }

// Sync flushes buffered log entries.
func Sync() error { return Logger().Sync() }
