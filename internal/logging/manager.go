package logging

import (
	"errors"
	"os"
	"slices"
	"sync"
)

// Компоненты сервера мира
const (
	ComponentWorld      = "world"
	ComponentStorage    = "storage"
	ComponentGeneration = "generation"
	ComponentEvents     = "events"
	ComponentHTTP       = "http"
)

// LoggerManager выдаёт логгеры компонентов и помнит их уровни.
// Уровень можно задать до первого обращения к компоненту: он применится при создании.
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	levels  map[string]LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает общий менеджер процесса
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{
			loggers: make(map[string]*Logger),
			levels:  make(map[string]LogLevel),
		}
	})
	return globalManager
}

// Logger возвращает логгер компонента, создавая его при первом обращении.
// Если файл лога не открылся, компонент пишет только в консоль.
func (lm *LoggerManager) Logger(component string) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l
	}
	l, err := NewLogger(component)
	if err != nil {
		l = newConsoleLogger(component, os.Stdout)
		l.Warn("Файл лога недоступен, только консоль: %v", err)
	}
	if level, ok := lm.levels[component]; ok {
		l.SetLevels(level, level)
	}
	lm.loggers[component] = l
	return l
}

// SetLevel задаёт уровень компонента для консоли и файла
func (lm *LoggerManager) SetLevel(component string, level LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.levels[component] = level
	if l, ok := lm.loggers[component]; ok {
		l.SetLevels(level, level)
	}
}

// Configure применяет уровни из секции logging.components, например generation: DEBUG
func (lm *LoggerManager) Configure(levels map[string]string) {
	for component, name := range levels {
		lm.SetLevel(component, ParseLevel(name))
	}
}

// Components возвращает имена созданных логгеров по алфавиту
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close закрывает файлы всех компонентов. Уровни сохраняются,
// следующее обращение создаст логгер заново.
func (lm *LoggerManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for _, l := range lm.loggers {
		errs = append(errs, l.Close())
	}
	clear(lm.loggers)
	return errors.Join(errs...)
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().Logger(component)
}

func GetWorldLogger() *Logger { return GetComponentLogger(ComponentWorld) }

func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }

// GetGenerationLogger: генератор рельефа и реестр форков
func GetGenerationLogger() *Logger { return GetComponentLogger(ComponentGeneration) }
