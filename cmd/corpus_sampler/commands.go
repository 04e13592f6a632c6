package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wbrown/bpe_corpus"
	"github.com/wbrown/bpe_corpus/evaluation"
	"github.com/wbrown/bpe_corpus/spmodel"
)

func newSampleCmd() *cobra.Command {
	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample <percent>% of every <category>_<language>.jsonl into the train or eval split",
		Args:  cobra.NoArgs,
		RunE:  SampleHandler,
	}
	sampleCmd.Flags().Int("percent", 10,
		"an integer value from 0-100 scaling every sampling weight")
	sampleCmd.Flags().Bool("evaluation", false,
		"sample the eval split, excluding the train split's documents")
	sampleCmd.Flags().String("weights", bpe_corpus.WeightsFileName,
		"sampling weights table")
	sampleCmd.Flags().Int64("seed", 42, "random seed")
	sampleCmd.Flags().Int("parallel", 1, "number of keys sampled at once")
	sampleCmd.Flags().Bool("concat", true,
		"after eval sampling, concatenate the eval split by language")
	sampleCmd.Flags().String("s3-region", os.Getenv("AWS_REGION"),
		"AWS region for s3:// data_original locations")
	return sampleCmd
}

// SampleHandler runs one split of the sampling protocol.
func SampleHandler(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	percent, _ := cmd.Flags().GetInt("percent")
	evaluationSplit, _ := cmd.Flags().GetBool("evaluation")
	weightsPath, _ := cmd.Flags().GetString("weights")
	seed, _ := cmd.Flags().GetInt64("seed")
	parallel, _ := cmd.Flags().GetInt("parallel")
	concat, _ := cmd.Flags().GetBool("concat")
	region, _ := cmd.Flags().GetString("s3-region")

	weights, err := bpe_corpus.ReadSamplingWeights(weightsPath, percent)
	if err != nil {
		return err
	}

	split := bpe_corpus.TrainSplit
	outDir := env.DataTrain
	var train bpe_corpus.IndexMap
	if evaluationSplit {
		split = bpe_corpus.EvalSplit
		outDir = env.DataEval
		if train, err = bpe_corpus.LoadSplitIndex(env.DataTrain); err != nil {
			return err
		}
	}

	samplingLog, err := bpe_corpus.OpenSamplingLog(outDir, weights,
		cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer samplingLog.Close()

	client, err := s3ClientFor(env.DataOriginal, region)
	if err != nil {
		return err
	}
	coordinator := &bpe_corpus.Coordinator{
		OriginalDir: env.DataOriginal,
		OutputDir:   outDir,
		Seed:        seed,
		Parallelism: parallel,
		S3:          client,
		Log:         samplingLog.Logger,
	}

	begin := time.Now()
	index, err := coordinator.Run(cmd.Context(), weights, split, train)
	if err != nil {
		samplingLog.Printf("ERROR! %v", err)
		return err
	}
	if evaluationSplit && concat {
		samplingLog.Printf("> concatenate data by language in %s", outDir)
		if _, err := bpe_corpus.ConcatenateByLanguage(outDir, outDir,
			samplingLog.Logger); err != nil {
			return err
		}
	}
	samplingLog.Printf("> sampled %d keys for the %s split in %.1fs",
		len(index), split, time.Since(begin).Seconds())
	return nil
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the train and eval samples are disjoint for every key",
		Args:  cobra.NoArgs,
		RunE:  VerifyHandler,
	}
}

// VerifyHandler compares the two splits' SAMPLING.json files.
func VerifyHandler(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	train, err := bpe_corpus.LoadSplitIndex(env.DataTrain)
	if err != nil {
		return err
	}
	eval, err := bpe_corpus.LoadSplitIndex(env.DataEval)
	if err != nil {
		return err
	}

	report, verifyErr := bpe_corpus.VerifyDisjoint(train, eval)
	out := cmd.OutOrStdout()
	if errors.Is(verifyErr, bpe_corpus.ErrSchemaMismatch) {
		table := newTable(out, []string{"KEY", "PRESENT IN"})
		for _, key := range report.OnlyTrain {
			table.Append([]string{key, "train only"})
		}
		for _, key := range report.OnlyEval {
			table.Append([]string{key, "eval only"})
		}
		table.Render()
		return &exitError{code: 2, err: verifyErr}
	}

	shared := make(map[string]int, len(report.Conflicts))
	for _, conflict := range report.Conflicts {
		shared[conflict.Key] = len(conflict.Positions)
	}
	table := newTable(out, []string{"KEY", "TRAIN", "EVAL", "SHARED"})
	for _, key := range report.Keys {
		table.Append([]string{key, strconv.Itoa(len(train[key])),
			strconv.Itoa(len(eval[key])), strconv.Itoa(shared[key])})
	}
	table.Render()
	if verifyErr != nil {
		return &exitError{code: 1, err: verifyErr}
	}
	fmt.Fprintln(out, "> train & eval indices are disjoint for all keys.")
	return nil
}

func newConcatCmd() *cobra.Command {
	concatCmd := &cobra.Command{
		Use:   "concat DIRECTORY",
		Short: "Concatenate <category>_<language>.jsonl files into all_<language>.jsonl",
		Args:  cobra.ExactArgs(1),
		RunE:  ConcatHandler,
	}
	concatCmd.Flags().String("out", "",
		"output directory (default DIRECTORY_CONCATENATED_BY_LANGUAGE)")
	return concatCmd
}

// ConcatHandler merges a directory's data files per language.
func ConcatHandler(cmd *cobra.Command, args []string) error {
	dir := args[0]
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = filepath.Clean(dir) + "_CONCATENATED_BY_LANGUAGE"
	}
	logger := newLogger(cmd)
	written, err := bpe_corpus.ConcatenateByLanguage(dir, outDir, logger)
	if err != nil {
		return err
	}
	logger.Printf("> wrote %d language files to %s", len(written), outDir)
	return nil
}

func newEvaluateCmd() *cobra.Command {
	evaluateCmd := &cobra.Command{
		Use:   "evaluate TOKENIZER",
		Short: "Evaluate a tokenizer on the concatenated eval split",
		Long: "Evaluate a tokenizer on every all_<language>.jsonl file of " +
			"the eval split. TOKENIZER is a SentencePiece model directory " +
			"or a gpt_bpe vocabulary id or directory.",
		Args: cobra.ExactArgs(1),
		RunE: EvaluateHandler,
	}
	evaluateCmd.Flags().Bool("keep-punctuation", false,
		"do not strip ASCII punctuation before encoding")
	evaluateCmd.Flags().Int("max-docs", 0,
		"stop after this many documents per file (0 = all)")
	evaluateCmd.Flags().String("eval-dir", "",
		"evaluation data directory (default data_eval)")
	return evaluateCmd
}

// EvaluateHandler replays a tokenizer over the eval split.
func EvaluateHandler(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	keepPunctuation, _ := cmd.Flags().GetBool("keep-punctuation")
	maxDocs, _ := cmd.Flags().GetInt("max-docs")
	evalDir, _ := cmd.Flags().GetString("eval-dir")
	if evalDir == "" {
		evalDir = env.DataEval
	}
	if env.Debug && maxDocs == 0 {
		maxDocs = 1
	}

	tokenizer, err := evaluation.LoadTokenizer(args[0])
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	opts := evaluation.Options{
		StripPunctuation: !keepPunctuation,
		MaxDocuments:     maxDocs,
	}
	results, err := evaluation.EvaluateAll(tokenizer, evalDir, opts, logger)
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(),
		[]string{"DATASET", "UNK RATE", "CTCL", "FERTILITY", "PROPORTION"})
	for _, name := range results.Datasets() {
		metrics := results[name]
		table.Append([]string{name,
			fmt.Sprintf("%.3f", metrics.UnkRate),
			fmt.Sprintf("%.3f", metrics.Ctcl),
			fmt.Sprintf("%.3f", metrics.Fertility),
			fmt.Sprintf("%.3f", metrics.Proportion)})
	}
	table.Render()

	resultsDir := args[0]
	if stat, statErr := os.Stat(resultsDir); statErr != nil || !stat.IsDir() {
		resultsDir = env.Output
	}
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return err
	}
	resultsPath := filepath.Join(resultsDir, evaluation.ResultsFileName)
	if err := results.Write(resultsPath); err != nil {
		return err
	}
	logger.Printf("> wrote evaluation results to %s", resultsPath)
	return nil
}

func newSpecialTokensCmd() *cobra.Command {
	specialCmd := &cobra.Command{
		Use:   "special-tokens MODEL_DIR",
		Short: "Add whitespace-run special tokens to a SentencePiece model",
		Args:  cobra.ExactArgs(1),
		RunE:  SpecialTokensHandler,
	}
	specialCmd.Flags().Bool("copy", false,
		"write the result to MODEL_DIR"+spmodel.CopySuffix+
			" instead of overwriting")
	return specialCmd
}

// SpecialTokensHandler updates a SentencePiece model directory.
func SpecialTokensHandler(cmd *cobra.Command, args []string) error {
	copyModel, _ := cmd.Flags().GetBool("copy")
	logger := newLogger(cmd)
	logger.Print("=== ADD SPECIAL TOKENS ===")
	_, err := spmodel.AddSpecialTokensDir(args[0], !copyModel, logger)
	return err
}

func newVocabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab MODEL_DIR",
		Short: "Export a SentencePiece model's vocabulary and subword length histogram",
		Args:  cobra.ExactArgs(1),
		RunE:  VocabHandler,
	}
}

// VocabHandler writes `tokenizer_vocab.json` and
// `tokenizer_subword_lengths.json` into the model directory.
func VocabHandler(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	vocabPath, lengthsPath, err := spmodel.WriteVocabFiles(
		filepath.Join(args[0], spmodel.ModelFileName),
		filepath.Join(args[0], "tokenizer"))
	if err != nil {
		return err
	}
	logger.Printf("> wrote vocab file %s", vocabPath)
	logger.Printf("> wrote subword length file %s", lengthsPath)
	return nil
}
