package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wbrown/bpe_corpus"
	"github.com/wbrown/bpe_corpus/config"
)

// exitError carries a process exit code through cobra without printing
// usage.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func loadEnv(cmd *cobra.Command) (*config.Env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	env, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		env.Verbose = true
	}
	return env, nil
}

func newLogger(cmd *cobra.Command) *log.Logger {
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

// s3ClientFor returns an S3 client when location is an S3 location.
func s3ClientFor(location, region string) (bpe_corpus.S3Client, error) {
	if !strings.HasPrefix(location, "s3://") {
		return nil, nil
	}
	awsConfig := &aws.Config{}
	if region != "" {
		awsConfig.Region = aws.String(region)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return s3.New(sess), nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "corpus_sampler",
		Short:         "Sample disjoint tokenizer train/eval corpora and evaluate tokenizers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", config.DefaultFileName,
		"workspace config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")

	rootCmd.AddCommand(
		newSampleCmd(),
		newVerifyCmd(),
		newConcatCmd(),
		newEvaluateCmd(),
		newSpecialTokensCmd(),
		newVocabCmd(),
	)
	return rootCmd
}

func main() {
	log.SetFlags(log.LstdFlags)
	if err := newRootCmd().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			log.Print(exitErr.err)
			os.Exit(exitErr.code)
		}
		log.Fatal(err)
	}
}
