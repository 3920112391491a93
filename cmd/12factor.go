package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/helper"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/source"
)

// init will be called first due to the lexical order in which these functions are executed.
// This ensures the value of twelveFactorMode is set such that other init() functions that configure
// Cobra can do the job of processing all environment variables that would contain equivalent of the CLI flag
// structures used by Starpipe's actions.
func init() {
	setupTwelveFactorMode()
}

// setupTwelveFactorMode will enable or disable 12 factor mode based on environment variable.
func setupTwelveFactorMode() {
	mode := os.Getenv(envVarTwelveFactorMode)
	if mode != "" { // if variable for 12factor mode is set and we should read env vars to determine actions...
		twelveFactorMode = true
		lambdaMode = strings.ToLower(mode) == "lambda"
	} else { // else 12factor mode should be off...
		twelveFactorMode = false // explicitly turn off this mode since tests may have turned it on while others require it off.
		lambdaMode = false
	}
}

const (
	envVarTwelveFactorMode = c.EnvVarPrefix + "_" + "12FACTOR_MODE"
	envVarCommand          = c.EnvVarPrefix + "_" + "COMMAND"
	envVarStackDump        = c.EnvVarPrefix + "_" + "STACK_DUMP"
)

var (
	twelveFactorMode bool // true if os env var envVarTwelveFactorMode is set
	lambdaMode       bool // true if os env var envVarTwelveFactorMode is "lambda"
	twelveFactorVars = func() map[string]string {
		m := map[string]string{
			envVarCommand:                 "",
			envVarStackDump:               "",
			flagNameToEnvVar("file"):      "",
			flagNameToEnvVar("sources"):   "",
			flagNameToEnvVar("store"):     "",
			flagNameToEnvVar("log-level"): "",
			flagNameToEnvVar("region"):    "",
		}
		for _, entity := range source.Entities {
			m[helper.GetSourceEnvVarName(entity)] = ""
		}
		return m
	}()
	twelveFactorVarsSensitive = map[string]string{ // used to flag some of the above variables as being sensitive.
		flagNameToEnvVar("store"): "", // DSNs may hold a password.
	}
)

type twelveFactorAction struct {
	runnerFunc func(ctx context.Context) error
}

var twelveFactorActions = map[string]twelveFactorAction{
	"run":    {runnerFunc: func(ctx context.Context) error { return runRun(ctx, nil) }},
	"check":  {runnerFunc: func(ctx context.Context) error { return runCheck(ctx, nil) }},
	"export": {runnerFunc: func(ctx context.Context) error { return runExport(ctx, nil) }},
	"serve":  {runnerFunc: func(ctx context.Context) error { return runServe(nil) }},
}

func execute12FactorMode(ctx context.Context, acts map[string]twelveFactorAction) (err error) {
	logLevel := helper.ReadValueFromEnvWithDefault(flagNameToEnvVar("log-level"), "warn") // fetch logLevel from env as this is not a persistent flag.
	stackDumpOnPanic = helper.GetTrueFalseStringAsBool(os.Getenv(envVarStackDump))
	var log logger.Logger
	if lambdaMode {
		log = logger.NewLambdaLogger(c.ServiceName, logLevel, nil)
	} else {
		log = logger.NewLogger(c.ServiceName, logLevel, stackDumpOnPanic)
	}
	log.Info("Starpipe is running in 12 Factor mode...")
	keys := make([]string, 0, len(twelveFactorVars))
	for k := range twelveFactorVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys { // for each env variable that we log...
		twelveFactorVars[k] = os.Getenv(k)
		if _, sensitive := twelveFactorVarsSensitive[k]; !sensitive { // if the env variable does not contain sensitive values...
			log.Debug(k, "=", twelveFactorVars[k])
		} else { // else output obfuscated value...
			log.Debug(k, "=", "<obfuscated>")
		}
	}
	command, err := helper.GetEnvVar(envVarCommand, true)
	if err != nil {
		log.Error(err.Error())
		return
	}
	a, ok := acts[strings.ToLower(strings.TrimSpace(command))]
	if !ok {
		err = fmt.Errorf("invalid command %q supplied in %v", command, envVarCommand)
		log.Error(err.Error())
		return
	}
	if lambdaMode { // if actions should log in the lambda format...
		runCfg.Log = log
		checkCfg.Log = log
		exportCfg.Log = log
		serveConfig.Log = log
	}
	err = a.runnerFunc(ctx)
	if err != nil {
		log.Error("Error: ", err)
	}
	return err
}
