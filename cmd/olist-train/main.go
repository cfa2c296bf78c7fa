// Copyright 2026 olist-intelligence Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/cmd/version"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/storage"
	"github.com/olist-intelligence/olist/storage/blob"
	"github.com/olist-intelligence/olist/storage/cache"
	"github.com/olist-intelligence/olist/storage/data"
	"github.com/olist-intelligence/olist/trainer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	exitFailure       = 1
	exitDataIntegrity = 2
	exitModelBuild    = 3
)

var trainCommand = &cobra.Command{
	Use:   "olist-train",
	Short: "Train the recommendation artifact from the purchase history.",
	Run: func(cmd *cobra.Command, args []string) {
		// show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}

		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Error("failed to load config", zap.Error(err))
			os.Exit(exitFailure)
		}
		if cmd.PersistentFlags().Changed("n-factors") {
			conf.Recommend.NFactors, _ = cmd.PersistentFlags().GetInt("n-factors")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err = train(ctx, conf); err != nil {
			log.Logger().Error("training failed", zap.Error(err))
			os.Exit(exitCode(err))
		}
	},
}

func train(ctx context.Context, conf *config.Config) error {
	dataClient, err := data.Open(conf.Database.DataStore,
		storage.WithTablePrefix(conf.Database.TablePrefix),
		storage.WithMaxOpenConns(conf.Database.MaxOpenConns),
		storage.WithMaxIdleConns(conf.Database.MaxIdleConns),
		storage.WithConnMaxLifetime(conf.Database.ConnMaxLifetime))
	if err != nil {
		return errors.Annotatef(err, "failed to connect data store %s", log.RedactDBURL(conf.Database.DataStore))
	}
	defer dataClient.Close()
	var cacheClient cache.Database
	if conf.Database.CacheStore != "" {
		if cacheClient, err = cache.Open(conf.Database.CacheStore, conf.Database.TablePrefix); err != nil {
			return errors.Annotatef(err, "failed to connect cache store %s", log.RedactDBURL(conf.Database.CacheStore))
		}
		defer cacheClient.Close()
	}
	blobStore, err := blob.Open(conf.Artifact)
	if err != nil {
		return errors.Trace(err)
	}
	_, _, err = trainer.NewTrainer(conf, dataClient, cacheClient, blobStore).Train(ctx)
	return errors.Trace(err)
}

// exitCode tells operators why a training run failed.
func exitCode(err error) int {
	switch {
	case errors.Is(err, dataset.ErrDataIntegrity):
		return exitDataIntegrity
	case errors.Is(err, dataset.ErrModelBuild):
		return exitModelBuild
	default:
		return exitFailure
	}
}

func init() {
	log.AddFlags(trainCommand.PersistentFlags())
	trainCommand.PersistentFlags().BoolP("version", "v", false, "olist-train version")
	trainCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	trainCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	trainCommand.PersistentFlags().Int("n-factors", 20, "number of latent factors")
}

func main() {
	if err := trainCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
