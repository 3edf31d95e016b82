package templates

import "os"

const configTemplate = `
home_dir: ~/.meshgen
models_dir: ~/.meshgen/models
temp_dir: ~/.meshgen/tmp
public_dir: ~/.meshgen/public

freecad:
  bin: freecadcmd
  timeout_sec: 120

openscad:
  bin: openscad
  timeout_sec: 60
  width: 512
  height: 512

# Uncomment to record generation history:
# db:
#   driver: sqlite
#   dsn: file:~/.meshgen/meshgen.db

# Uncomment to publish generation events to Pulsar instead of the
# in-process queue:
# pulsar:
#   url: pulsar://localhost:6650
`

func GetConfigTemplate() string {
	return configTemplate
}

func WriteConfig(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(GetConfigTemplate())
	if err != nil {
		return err
	}

	return nil
}
