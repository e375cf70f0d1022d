/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Command xlabel is the annotation editor and its batch tools.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"xlabel/internal/config"
	"xlabel/internal/crash"
	applog "xlabel/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	defer crash.Recover(crash.Handler{Dir: crashDir()})
	defer func() { _ = applog.Close() }()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func crashDir() string {
	if dir, err := config.Dir(); err == nil {
		return filepath.Join(dir, "crash")
	}
	return ""
}
