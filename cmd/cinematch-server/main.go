// Copyright 2025 cinematch Project Authors
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
	"fmt"
	_ "net/http/pprof"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinematch/cinematch/base/log"
	"github.com/cinematch/cinematch/cmd/version"
	"github.com/cinematch/cinematch/config"
	"github.com/cinematch/cinematch/server"
)

var serverCommand = &cobra.Command{
	Use:   "cinematch-server",
	Short: "The inference server of the cinematch recommender system.",
	Run: func(cmd *cobra.Command, args []string) {
		// show version
		showVersion, _ := cmd.PersistentFlags().GetBool("version")
		if showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		// setup logger
		debugMode, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debugMode)
		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		var (
			cfg *config.Config
			err error
		)
		if cmd.PersistentFlags().Changed("config") {
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				log.Logger().Fatal("failed to load config", zap.Error(err))
			}
			log.Logger().Info("load config", zap.String("config", configPath))
		} else {
			cfg = config.GetDefaultConfig()
		}
		// command line flags overwrite the config file
		if cmd.PersistentFlags().Changed("http-host") {
			cfg.Server.HttpHost, _ = cmd.PersistentFlags().GetString("http-host")
		}
		if cmd.PersistentFlags().Changed("http-port") {
			cfg.Server.HttpPort, _ = cmd.PersistentFlags().GetInt("http-port")
		}
		if cmd.PersistentFlags().Changed("model-dir") {
			cfg.Model.Dir, _ = cmd.PersistentFlags().GetString("model-dir")
		}
		// start server
		s := server.NewServer(cfg)
		s.Serve()
	},
}

func init() {
	serverCommand.PersistentFlags().BoolP("version", "v", false, "cinematch version")
	serverCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	serverCommand.PersistentFlags().String("http-host", "0.0.0.0", "host of RESTful API")
	serverCommand.PersistentFlags().Int("http-port", 8087, "port of RESTful API")
	serverCommand.PersistentFlags().String("model-dir", "model", "directory of serving artifacts")
	serverCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(serverCommand.PersistentFlags())
}

func main() {
	if err := serverCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
