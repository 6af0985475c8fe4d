package logging

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Component имя подсистемы, под которым пишет логгер
type Component string

const (
	ComponentWorld     Component = "world"
	ComponentStreaming Component = "streaming"
	ComponentMesh      Component = "mesh"
	ComponentNetwork   Component = "network"
	ComponentSync      Component = "sync"
	ComponentServer    Component = "server"
)

// LoggerManager хранит по одному логгеру на компонент
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[Component]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает общий менеджер логгеров процесса
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = &LoggerManager{loggers: make(map[Component]*Logger)}
	})
	return globalManager
}

// For возвращает логгер компонента. Если файл логов открыть не удалось,
// компонент пишет только в консоль и ошибка уходит в логгер по умолчанию.
func (lm *LoggerManager) For(c Component) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[c]; ok {
		return l
	}
	l, err := NewLogger(string(c))
	if err != nil {
		Default().Warn("Логгер %s работает без файла: %v", c, err)
		opts := currentOptions()
		l = &Logger{
			component:       string(c),
			consoleLogger:   Default().consoleLogger,
			minConsoleLevel: opts.ConsoleLevel,
			minFileLevel:    ERROR + 1,
		}
	}
	lm.loggers[c] = l
	return l
}

// SetLevel меняет пороги уже созданного логгера компонента
func (lm *LoggerManager) SetLevel(c Component, console, file LogLevel) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	l, ok := lm.loggers[c]
	if !ok {
		return fmt.Errorf("logger for component %s not found", c)
	}
	l.minConsoleLevel = console
	l.minFileLevel = file
	return nil
}

// Components возвращает отсортированный список созданных логгеров
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names := make([]string, 0, len(lm.loggers))
	for c := range lm.loggers {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for c, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close logger %s: %w", c, err))
		}
	}
	lm.loggers = make(map[Component]*Logger)
	return errors.Join(errs...)
}

// GetComponentLogger возвращает логгер произвольного компонента
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().For(Component(component))
}

func GetWorldLogger() *Logger     { return GetLoggerManager().For(ComponentWorld) }
func GetStreamingLogger() *Logger { return GetLoggerManager().For(ComponentStreaming) }
func GetMeshLogger() *Logger      { return GetLoggerManager().For(ComponentMesh) }
func GetNetworkLogger() *Logger   { return GetLoggerManager().For(ComponentNetwork) }
func GetSyncLogger() *Logger      { return GetLoggerManager().For(ComponentSync) }
func GetServerLogger() *Logger    { return GetLoggerManager().For(ComponentServer) }
