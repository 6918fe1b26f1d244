// Package cloudlog routes the standard logger to stdout, an optional rotating
// file and, when a project is configured, Google Cloud Logging.
package cloudlog

import (
	"context"
	"io"
	"log"
	"os"
	"sync"

	logging "cloud.google.com/go/logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logName = "habits_api"

type Options struct {
	ProjectID string
	// LogFile enables a rotating file sink when non-empty.
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
}

var (
	mu      sync.RWMutex
	cloud   *log.Logger
	client  *logging.Client
	rotator *lumberjack.Logger
)

// Setup installs the sinks described by opts. A Cloud Logging failure is
// reported and the process keeps logging locally.
func Setup(ctx context.Context, opts Options) {
	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stdout
	if opts.LogFile != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if opts.ProjectID == "" {
		return
	}
	c, err := logging.NewClient(ctx, opts.ProjectID)
	if err != nil {
		log.Printf("cloudlog: failed to create logging client: %v", err)
		return
	}
	client = c
	cloud = c.Logger(logName).StandardLogger(logging.Info)
}

// Close flushes Cloud Logging and closes the rotating file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if client != nil {
		if err := client.Close(); err != nil {
			log.Printf("cloudlog: close: %v", err)
		}
		client, cloud = nil, nil
	}
	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
}

func remote() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return cloud
}

// Print is a proxy for log.Print
func Print(v ...interface{}) {
	log.Print(v...)
	if l := remote(); l != nil {
		l.Print(v...)
	}
}

// Println is a proxy for log.Println
func Println(v ...interface{}) {
	log.Println(v...)
	if l := remote(); l != nil {
		l.Println(v...)
	}
}

// Printf is a proxy for log.Printf
func Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
	if l := remote(); l != nil {
		l.Printf(format, v...)
	}
}

// Fatal logs to every sink then exits.
func Fatal(v ...interface{}) {
	if l := remote(); l != nil {
		l.Print(v...)
	}
	Close()
	log.Fatal(v...)
}

// Fatalf logs to every sink then exits.
func Fatalf(format string, v ...interface{}) {
	if l := remote(); l != nil {
		l.Printf(format, v...)
	}
	Close()
	log.Fatalf(format, v...)
}
