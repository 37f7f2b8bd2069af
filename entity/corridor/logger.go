package corridor

import "github.com/sirupsen/logrus"

// log 干线协调模块的日志记录器
var log = logrus.WithField("module", "corridor")
