package binutil

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/openmana/accountserver/engine/omlog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupHTTPServer starts the admin HTTP server for go tool pprof and
// operator handlers
func SetupHTTPServer(ip string, port int, handlers map[string]http.Handler) {
	if port == 0 {
		omlog.Infof("admin http server not enabled")
		return
	}

	httpHost := fmt.Sprintf("%s:%d", ip, port)
	omlog.Infof("http server listening on %s", httpHost)
	omlog.Infof("pprof http://%s/debug/pprof/ ... available commands: ", httpHost)
	omlog.Infof("    go tool pprof http://%s/debug/pprof/heap", httpHost)
	omlog.Infof("    go tool pprof http://%s/debug/pprof/profile", httpHost)

	for pattern, handler := range handlers {
		http.Handle(pattern, handler)
	}

	go func() {
		http.ListenAndServe(httpHost, nil)
	}()
}

// SetupOMLog setup the account server log system
func SetupOMLog(component string, logLevel string, logFile string, logStderr bool) {
	omlog.SetSource(component)
	omlog.Infof("Set log level to %s", logLevel)
	omlog.SetLevel(omlog.StringToLevel(logLevel))

	outputWriters := make([]io.Writer, 0, 2)
	if logFile != "" {
		logFileWriter := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 100,
			MaxAge:     30, //days
			Compress:   true,
		}

		logFileWriter.Rotate() // rotate immediately
		outputWriters = append(outputWriters, logFileWriter)
	}

	if logStderr {
		outputWriters = append(outputWriters, os.Stderr)
	}

	if len(outputWriters) == 1 {
		omlog.SetOutput(outputWriters[0])
	} else {
		omlog.SetOutput(io.MultiWriter(outputWriters...))
	}
}
