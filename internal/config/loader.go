package config

// LoadFromEnv reads the process environment. Builds tagged dev first merge the
// file named by ENV_FILE (default .env) into it.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}
