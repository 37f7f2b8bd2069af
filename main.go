package main

import (
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/api"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/task"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
	"gopkg.in/yaml.v2"
)

var (
	// 控制任务名，主要用于日志标识
	job = flag.String("job", "job0", "the name of the control task")
	// 对外HTTP/websocket监听地址
	listenAddr = flag.String("listen", ":51102", "HTTP listening address")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "signal")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var c config.Config
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	log.Infof("%+v", c)

	t, err := task.NewContext(*job, c)
	if err != nil {
		log.Panicf("config validate err: %v", err)
	}
	// 先完成初始化，再对外提供服务
	t.Init()

	// 对外服务协程，提供量测接收与状态查询
	server := api.NewServer(t, t.Dispatcher(), *listenAddr)
	go func() {
		if err := server.Serve(); err != nil {
			log.Panicf("failed to serve: %v", err)
		}
	}()

	// 信号处理：收到SIGINT/SIGTERM后走清空流程优雅退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received %v, shutting down after clearance", sig)
		t.Close()
	}()

	t.Run()
	server.Close()
}
