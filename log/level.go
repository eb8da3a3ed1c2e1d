package log

import (
	"strings"

	"github.com/astaxie/beego/logs"
)

const defaultLogLevel = logs.LevelDebug

var levelMap = map[string]int{
	"emergency": logs.LevelEmergency,
	"alert":     logs.LevelAlert,
	"critical":  logs.LevelCritical,
	"error":     logs.LevelError,
	"warn":      logs.LevelWarn,
	"notice":    logs.LevelNotice,
	"info":      logs.LevelInfo,
	"debug":     logs.LevelDebug,
}

func getLevel(level string) (int, bool) {
	ele, ok := levelMap[strings.ToLower(level)]
	if !ok {
		return defaultLogLevel, false
	}
	return ele, true
}
