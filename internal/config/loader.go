package config

// LoadFromEnv reads the process environment. Builds tagged dev also read a
// .env file from the working directory first.
func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}
