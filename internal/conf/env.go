// env.go - environment variable and .env handling
package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MYCONET_WEBSERVER_PORT.
const EnvPrefix = "MYCONET"

// dotEnvFile is read from the working directory before the config file.
const dotEnvFile = ".env"

// LoadDotEnv loads variables from a .env file without overriding variables
// already present in the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// bindEnvVars maps MYCONET_<SECTION>_<KEY> variables onto config keys.
func bindEnvVars() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
