// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Myco-Net")
	viper.SetDefault("main.timezone", "Local")
	viper.SetDefault("main.log.default_level", "info")
	viper.SetDefault("main.log.timezone", "Local")
	viper.SetDefault("main.log.console.enabled", true)
	viper.SetDefault("main.log.console.level", "info")
	viper.SetDefault("main.log.file_output.enabled", true)
	viper.SetDefault("main.log.file_output.path", "logs/myconet.log")
	viper.SetDefault("main.log.file_output.level", "info")

	viper.SetDefault("data.plant.path", "data/raw/plant_health_data.csv")
	viper.SetDefault("data.plant.label", "Plant_Health_Status")
	viper.SetDefault("data.plant.drop", []string{"Timestamp", "Plant_ID"})

	viper.SetDefault("data.fungal.path", "data/raw/myco_network_data.csv")
	viper.SetDefault("data.fungal.label", "Survived")
	viper.SetDefault("data.fungal.survivelabel", "1")
	viper.SetDefault("data.fungal.species", "Species")
	viper.SetDefault("data.fungal.light", "Light")
	viper.SetDefault("data.fungal.microbe", "Microbe")
	viper.SetDefault("data.fungal.numeric", []string{"AMF", "PHN_Imp", "NSC_Imp", "LIG_Imp"})

	viper.SetDefault("training.trees", 100)
	viper.SetDefault("training.seed", 42)
	viper.SetDefault("training.testfraction", 0.2)
	viper.SetDefault("training.maxfeatures", "sqrt")
	viper.SetDefault("training.maxdepth", 0)
	viper.SetDefault("training.minsamplessplit", 2)
	viper.SetDefault("training.minsamplesleaf", 1)
	viper.SetDefault("training.workers", 0)

	viper.SetDefault("model.dir", "models")
	viper.SetDefault("model.plant", "plant_health_model.json.zst")
	viper.SetDefault("model.fungal", "myco_net_model.json.zst")
	viper.SetDefault("model.species", "species_encoder.json")
	viper.SetDefault("model.light", "light_encoder.json")
	viper.SetDefault("model.microbe", "microbe_encoder.json")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.autotls", false)
	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.ratelimit", 20)
	viper.SetDefault("webserver.sessionsecret", "")
	viper.SetDefault("webserver.sessionttl", 12*time.Hour)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "myconet.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "myconet")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "myconet")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("telemetry.sentry.dsn", "")
}
