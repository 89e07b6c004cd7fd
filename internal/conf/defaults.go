// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "WaitWatch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/waitwatch.log")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "waitwatch.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "waitwatch")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "waitwatch")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("accuracy.comparison.intervalminutes", 60)
	viper.SetDefault("accuracy.comparison.readybufferminutes", 20)
	viper.SetDefault("accuracy.comparison.lookbackhours", 24)
	viper.SetDefault("accuracy.comparison.matchtoleranceminutes", 15)
	viper.SetDefault("accuracy.comparison.exactmatchseconds", 60)
	viper.SetDefault("accuracy.comparison.missedtimeouthours", 2)
	viper.SetDefault("accuracy.comparison.batchsize", 5000)

	viper.SetDefault("accuracy.retention.unmatcheddays", 7)
	viper.SetDefault("accuracy.retention.completeddays", 90)

	viper.SetDefault("accuracy.aggregation.minsamplesforbadge", 10)
	viper.SetDefault("accuracy.aggregation.minsamplesperentity", 10)
	viper.SetDefault("accuracy.aggregation.cachettlminutes", 10)

	viper.SetDefault("accuracy.drift.windowdays", 7)
	viper.SetDefault("accuracy.drift.warningpercent", 20.0)
	viper.SetDefault("accuracy.drift.criticalpercent", 30.0)
	viper.SetDefault("accuracy.drift.mindriftpercent", 15.0)
	viper.SetDefault("accuracy.drift.maeceiling", 15.0)
	viper.SetDefault("accuracy.drift.coveragefloor", 50.0)
	viper.SetDefault("accuracy.drift.mapeceiling", 60.0)
	viper.SetDefault("accuracy.drift.defaultmodelversion", "v1.0.0")

	viper.SetDefault("accuracy.correlation.higherrorthreshold", 15.0)
	viper.SetDefault("accuracy.correlation.minsamplespervalue", 3)
	viper.SetDefault("accuracy.correlation.topvalues", 3)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "waitwatch/drift")
	viper.SetDefault("mqtt.username", "waitwatch")
	viper.SetDefault("mqtt.password", "secret")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
}
