package am

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
)

// backupCount is how many rotated copies (.back1 .. .back3) are kept.
const backupCount = 3

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	oldest := backupPath(configPath, backupCount)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		// Don't fail the save over a stale backup
		logger.Warnw("Failed to delete old config backup", "path", oldest, "error", err)
	}

	for i := backupCount - 1; i >= 1; i-- {
		from := backupPath(configPath, i)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, backupPath(configPath, i+1)); err != nil {
			return errors.Wrapf(err, "failed to rotate %s", from)
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(backupPath(configPath, 1), content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

func backupPath(configPath string, n int) string {
	return configPath + ".back" + strconv.Itoa(n)
}

// isBackupFile checks if the file is a backup file (.back1, .back2, .back3)
func isBackupFile(path string) bool {
	base := filepath.Base(path)
	for i := 1; i <= backupCount; i++ {
		if strings.HasSuffix(base, ".back"+strconv.Itoa(i)) {
			return true
		}
	}
	return false
}

// Keys lists every known configuration key, sorted.
func Keys() []string {
	v := viper.New()
	SetDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// ParseValue converts raw to the type of key's default value.
func ParseValue(key, raw string) (interface{}, error) {
	v := viper.New()
	SetDefaults(v)
	if !v.IsSet(key) {
		return nil, errors.WithHintf(errors.Newf("unknown config key %q", key),
			"known keys: %s", strings.Join(Keys(), ", "))
	}

	switch v.Get(key).(type) {
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s expects a boolean", key)
		}
		return b, nil
	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s expects an integer", key)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s expects a number", key)
		}
		return f, nil
	default:
		return raw, nil
	}
}

// Set writes key = raw into the user config file (~/.dirsvc/dirsvc.toml).
func Set(key, raw string) (string, error) {
	path := UserConfigPath()
	if path == "" {
		return "", errors.New("could not determine home directory")
	}
	if err := SetInFile(path, key, raw); err != nil {
		return "", err
	}
	return path, nil
}

// SetInFile writes key = raw into the TOML file at path, keeping the rest of
// the file. The resulting configuration must validate; the previous file is
// kept as a rotating backup.
func SetInFile(path, key, raw string) error {
	value, err := ParseValue(key, raw)
	if err != nil {
		return err
	}

	doc := map[string]interface{}{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return errors.Wrapf(err, "failed to parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	setNested(doc, strings.Split(key, "."), value)

	candidate := viper.New()
	SetDefaults(candidate)
	if err := candidate.MergeConfigMap(doc); err != nil {
		return errors.Wrap(err, "failed to merge config")
	}
	cfg, err := LoadWithViper(candidate)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrapf(err, "refusing to write %s", key)
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	Reset()
	return nil
}

func setNested(doc map[string]interface{}, path []string, value interface{}) {
	for _, part := range path[:len(path)-1] {
		next, ok := doc[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			doc[part] = next
		}
		doc = next
	}
	doc[path[len(path)-1]] = value
}
