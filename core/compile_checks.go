package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Dispatcher     = (*Service)(nil)
	_ TargetResolver = (*Service)(nil)

	_ TelemetryReporter = NopTelemetryReporter{}
	_ ConfigProvider    = (*CfgxConfigProvider)(nil)
	_ OptionsResolver   = GoOptionsResolver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
