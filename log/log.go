package log

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/astaxie/beego/logs"
)

type logConfig struct {
	Filename string `json:"filename"`
	Level    int    `json:"level,omitempty"`
	Rotate   bool   `json:"rotate,omitempty"`
	Daily    bool   `json:"daily,omitempty"`
	MaxDays  int64  `json:"maxdays,omitempty"`
	MaxLines int    `json:"maxlines,omitempty"`
	MaxSize  int    `json:"maxsize,omitempty"`
}

var logModules []string

func Init(dir string, strLevel string, modules []string) error {
	logLevel, ok := getLevel(strLevel)
	if !ok {
		return fmt.Errorf("mismatch the logLevel %s", strLevel)
	}
	logModules = modules

	config, err := json.Marshal(logConfig{
		Filename: path.Join(dir, "debug.log"),
		Level:    logLevel,
		Rotate:   true,
		Daily:    true,
	})
	if err != nil {
		return err
	}
	logs.Reset()
	return logs.SetLogger(logs.AdapterFile, string(config))
}

func Print(module string, level string, format string, reason ...interface{}) {
	if !isIncludeModule(module) {
		return
	}
	switch level {
	case "emergency":
		logs.Emergency(format, reason...)
	case "alert":
		logs.Alert(format, reason...)
	case "critical":
		logs.Critical(format, reason...)
	case "error":
		logs.Error(format, reason...)
	case "warn":
		logs.Warn(format, reason...)
	case "notice":
		logs.Notice(format, reason...)
	case "info":
		logs.Info(format, reason...)
	case "debug":
		logs.Debug(format, reason...)
	}
}

func isIncludeModule(module string) bool {
	for _, item := range logModules {
		if item == module || item == "all" {
			return true
		}
	}
	return false
}
