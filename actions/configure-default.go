package actions

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/config"
	"github.com/relloyd/starpipe/helper"
)

type DefaultAddConfig struct {
	ConfigFile *config.File `errorTxt:"config-file" mandatory:"yes"`
	Key        string       `errorTxt:"key" mandatory:"yes"`
	Value      string       `errorTxt:"value" mandatory:"yes"`
	Force      bool
	KnownKeys  []string // optional set of keys that may be added
	Out        io.Writer
}

type DefaultRemoveConfig struct {
	ConfigFile *config.File `errorTxt:"config-file" mandatory:"yes"`
	Key        string       `errorTxt:"key" mandatory:"yes"`
	Out        io.Writer
}

type DefaultListConfig struct {
	ConfigFile *config.File `errorTxt:"config-file" mandatory:"yes"`
	Out        io.Writer
}

// RunDefaultAdd adds key+value to the given config file.
// If cfg.Force is not set then it return an error when the key exists.
// The config file is created on first write.
func RunDefaultAdd(cfg *DefaultAddConfig) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil { // if the basics were not supplied...
		return err
	}
	if len(cfg.KnownKeys) > 0 && !helper.StringSliceContains(cfg.KnownKeys, cfg.Key) { // if the key would never take effect...
		return fmt.Errorf("unknown key %q, use one of: %v", cfg.Key, strings.Join(cfg.KnownKeys, ", "))
	}
	var val interface{}
	err := cfg.ConfigFile.Get(cfg.Key, &val)
	if err == nil && !cfg.Force { // if key exists and we're not allowed to overwrite...
		return fmt.Errorf("key %q exists, use force to update the value or remove it first", cfg.Key)
	} else if err != nil && !errors.As(err, &config.KeyNotFoundError{}) { // else there was an unexpected error...
		return err
	}
	if err = cfg.ConfigFile.Set(cfg.Key, cfg.Value); err != nil {
		return fmt.Errorf("error writing config file after adding: %v", err)
	}
	_, err = fmt.Fprintf(getWriter(cfg.Out), "Key %q added to %q\n", cfg.Key, cfg.ConfigFile.FullPath)
	return err
}

// RunDefaultRemove removes a key from the given config file.
func RunDefaultRemove(cfg *DefaultRemoveConfig) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil { // if the basics were not supplied...
		return err
	}
	if err := cfg.ConfigFile.Delete(cfg.Key); err != nil {
		return fmt.Errorf("unable to delete key %q from config: %v", cfg.Key, err)
	}
	_, err := fmt.Fprintf(getWriter(cfg.Out), "Key %q removed\n", cfg.Key)
	return err
}

// RunDefaultList prints every key and value of the given config file.
func RunDefaultList(cfg *DefaultListConfig) error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	keys, err := cfg.ConfigFile.GetAllKeys()
	if err != nil {
		return err
	}
	w := getWriter(cfg.Out)
	for _, k := range keys {
		var v interface{}
		if err = cfg.ConfigFile.Get(k, &v); err != nil {
			return err
		}
		if _, err = fmt.Fprintf(w, "%v: %v\n", k, v); err != nil {
			return err
		}
	}
	return nil
}
