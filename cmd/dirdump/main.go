// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	director "github.com/saferwall/director"
	"github.com/spf13/cobra"
)

var (
	all             bool
	bitmaps         bool
	resources       bool
	strict          bool
	externalCastDir string
)

func prettyPrint(buff []byte) string {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, buff, "", "\t"); err != nil {
		log.Println("JSON parse error: ", err)
		return string(buff)
	}
	return prettyJSON.String()
}

func isDirectory(path string) bool {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fileInfo.IsDir()
}

func dumpFile(filename string, cmd *cobra.Command) {
	log.Printf("processing filename %s", filename)

	opts := &director.Options{Strict: strict}
	if externalCastDir != "" {
		opts.ExternalCastDir = externalCastDir
	}

	df, err := director.Open(filename, opts)
	if err != nil {
		log.Printf("error while opening file: %s, reason: %s", filename, err)
		return
	}
	defer df.Close()

	wantAll, _ := cmd.Flags().GetBool("all")
	wantBitmaps, _ := cmd.Flags().GetBool("bitmaps")
	wantResources, _ := cmd.Flags().GetBool("resources")

	if wantResources || wantAll {
		counts := df.Resources()
		buf, _ := json.Marshal(counts)
		fmt.Println(prettyPrint(buf))
	}

	if !wantBitmaps && !wantAll {
		header, _ := json.Marshal(df.Header)
		fmt.Println(prettyPrint(header))
		return
	}

	buf, _ := json.Marshal(df)
	fmt.Println(prettyPrint(buf))
}

func parse(cmd *cobra.Command, args []string) {
	filePath := args[0]

	if !isDirectory(filePath) {
		dumpFile(filePath, cmd)
		return
	}

	var fileList []string
	filepath.Walk(filePath, func(path string, f os.FileInfo, err error) error {
		if err == nil && !isDirectory(path) {
			fileList = append(fileList, path)
		}
		return nil
	})

	for _, file := range fileList {
		dumpFile(file, cmd)
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "dirdump",
		Short: "A Director movie file parser",
		Long:  "Parses RIFX/XFIR Director movie and cast containers, dumping their structure as JSON",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Long:  "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.1.0")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dumps the file",
		Long:  "Dumps the decoded structure of a Director movie or cast file",
		Args:  cobra.MinimumNArgs(1),
		Run:   parse,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().BoolVarP(&all, "all", "", false, "Dump everything, including resolved casts and decoded bitmap metadata")
	dumpCmd.Flags().BoolVarP(&bitmaps, "bitmaps", "", false, "Dump resolved casts and decoded bitmap metadata")
	dumpCmd.Flags().BoolVarP(&resources, "resources", "", false, "Dump the memory map resource tag histogram")
	dumpCmd.Flags().BoolVarP(&strict, "strict", "", false, "Treat a truncated bitmap payload as a hard error")
	dumpCmd.Flags().StringVarP(&externalCastDir, "cast-dir", "", "", "Directory to resolve external .cxt casts from (defaults to the input file's directory)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
