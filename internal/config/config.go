package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	ChatLog   ChatLogConfig   `mapstructure:"chatlog"`
	Generate  GenerateConfig  `mapstructure:"generate"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Server    ServerConfig    `mapstructure:"server"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	Workspace      string `mapstructure:"workspace"`
	CorpusDir      string `mapstructure:"corpus_dir"`
	ModelDir       string `mapstructure:"model_dir"`
	Stopwords      string `mapstructure:"stopwords"`
	TokenizerModel string `mapstructure:"tokenizer_model"`
	Dictionary     string `mapstructure:"dictionary"`
}

type CorpusConfig struct {
	MergeThreshold int      `mapstructure:"merge_threshold"`
	MinLineChars   int      `mapstructure:"min_line_chars"`
	Encodings      []string `mapstructure:"encodings"`
	FullStop       string   `mapstructure:"full_stop"`
}

type ChatLogConfig struct {
	HeaderLines   int      `mapstructure:"header_lines"`
	Handles       []string `mapstructure:"handles"`
	Names         []string `mapstructure:"names"`
	ExcludeMarker string   `mapstructure:"exclude_marker"`
}

type GenerateConfig struct {
	Order     string `mapstructure:"order"`
	Policy    string `mapstructure:"policy"`
	Seed      uint64 `mapstructure:"seed"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Retries   int    `mapstructure:"retries"`
	Joiner    string `mapstructure:"joiner"`
	EmitTail  bool   `mapstructure:"emit_tail"`
}

type TokenizerConfig struct {
	Kind string `mapstructure:"kind"`
}

type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	Workers         int           `mapstructure:"workers"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			Workspace:      ".",
			CorpusDir:      "corpus",
			ModelDir:       "models",
			Stopwords:      "models/stopwords_cn.txt",
			TokenizerModel: "",
			Dictionary:     "",
		},
		Corpus: CorpusConfig{
			MergeThreshold: 20,
			MinLineChars:   12,
			Encodings:      []string{"utf-8", "gb18030"},
			FullStop:       "。",
		},
		ChatLog: ChatLogConfig{
			HeaderLines:   8,
			Handles:       []string{},
			Names:         []string{},
			ExcludeMarker: "(",
		},
		Generate: GenerateConfig{
			Order:     Bigram,
			Policy:    PolicyWeighted,
			Seed:      0,
			MaxTokens: 0,
			Retries:   8,
			Joiner:    "",
			EmitTail:  false,
		},
		Tokenizer: TokenizerConfig{
			Kind: TokenizerDict,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("workspace", defaults.Paths.Workspace, "Workspace root holding projects, corpora and models")
	fs.String("paths-corpus-dir", defaults.Paths.CorpusDir, "Corpus directory (relative to the workspace)")
	fs.String("paths-model-dir", defaults.Paths.ModelDir, "Model directory (relative to the workspace)")
	fs.String("paths-stopwords", defaults.Paths.Stopwords, "Stop word list excluded from the top-token statistics")
	fs.String("paths-tokenizer-model", defaults.Paths.TokenizerModel, "Path to SentencePiece model (tokenizer kind sentencepiece)")
	fs.String("paths-dictionary", defaults.Paths.Dictionary, "Word list for the dictionary tokenizer")
	fs.Int("corpus-merge-threshold", defaults.Corpus.MergeThreshold, "Greedy line merge threshold in characters")
	fs.Int("corpus-min-line-chars", defaults.Corpus.MinLineChars, "Minimum characters for an extracted chat line")
	fs.StringSlice("corpus-encodings", defaults.Corpus.Encodings, "Ordered candidate encodings for raw corpus files")
	fs.String("corpus-full-stop", defaults.Corpus.FullStop, "Sentence-final punctuation that ends a corpus line")
	fs.Int("chatlog-header-lines", defaults.ChatLog.HeaderLines, "Header lines skipped at the top of each chat log")
	fs.StringSlice("chatlog-handles", defaults.ChatLog.Handles, "Sender handles kept by the chat-log extractor")
	fs.StringSlice("chatlog-names", defaults.ChatLog.Names, "Sender display names kept by the chat-log extractor")
	fs.String("chatlog-exclude-marker", defaults.ChatLog.ExcludeMarker, "Marker that disqualifies a display-name match")
	fs.String("order", defaults.Generate.Order, "Generation order (2-gram|3-gram)")
	fs.String("policy", defaults.Generate.Policy, "Sampling policy (weighted|uniform)")
	fs.Uint64("seed", defaults.Generate.Seed, "Random seed (0 = seed from time)")
	fs.Int("max-tokens", defaults.Generate.MaxTokens, "Abort a walk after this many tokens (0 = unbounded)")
	fs.Int("generate-retries", defaults.Generate.Retries, "Trigram start re-draws before falling back to eligible starts")
	fs.String("generate-joiner", defaults.Generate.Joiner, "String placed between generated tokens")
	fs.Bool("generate-emit-tail", defaults.Generate.EmitTail, "Emit the pending context token when a trigram walk ends")
	fs.String("tokenizer-kind", defaults.Tokenizer.Kind, "Tokenizer kind (dict|whitespace|sentencepiece)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent generation requests")
	fs.Duration("server-request-timeout", defaults.Server.RequestTimeout, "Per-request generation deadline")
	fs.Duration("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("SPAKE")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("spake")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate rejects values no pipeline stage can run with.
func (c Config) Validate() error {
	if c.Corpus.MergeThreshold < 0 {
		return fmt.Errorf("corpus.merge_threshold must be >= 0, got %d", c.Corpus.MergeThreshold)
	}
	if c.Corpus.MinLineChars < 0 {
		return fmt.Errorf("corpus.min_line_chars must be >= 0, got %d", c.Corpus.MinLineChars)
	}
	if len(c.Corpus.Encodings) == 0 {
		return fmt.Errorf("corpus.encodings must list at least one encoding")
	}
	if c.ChatLog.HeaderLines < 0 {
		return fmt.Errorf("chatlog.header_lines must be >= 0, got %d", c.ChatLog.HeaderLines)
	}
	if _, err := NormalizeOrder(c.Generate.Order); err != nil {
		return err
	}
	if _, err := NormalizePolicy(c.Generate.Policy); err != nil {
		return err
	}
	if _, err := NormalizeTokenizer(c.Tokenizer.Kind); err != nil {
		return err
	}
	if c.Generate.MaxTokens < 0 {
		return fmt.Errorf("generate.max_tokens must be >= 0, got %d", c.Generate.MaxTokens)
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.workspace", c.Paths.Workspace)
	v.SetDefault("paths.corpus_dir", c.Paths.CorpusDir)
	v.SetDefault("paths.model_dir", c.Paths.ModelDir)
	v.SetDefault("paths.stopwords", c.Paths.Stopwords)
	v.SetDefault("paths.tokenizer_model", c.Paths.TokenizerModel)
	v.SetDefault("paths.dictionary", c.Paths.Dictionary)
	v.SetDefault("corpus.merge_threshold", c.Corpus.MergeThreshold)
	v.SetDefault("corpus.min_line_chars", c.Corpus.MinLineChars)
	v.SetDefault("corpus.encodings", c.Corpus.Encodings)
	v.SetDefault("corpus.full_stop", c.Corpus.FullStop)
	v.SetDefault("chatlog.header_lines", c.ChatLog.HeaderLines)
	v.SetDefault("chatlog.handles", c.ChatLog.Handles)
	v.SetDefault("chatlog.names", c.ChatLog.Names)
	v.SetDefault("chatlog.exclude_marker", c.ChatLog.ExcludeMarker)
	v.SetDefault("generate.order", c.Generate.Order)
	v.SetDefault("generate.policy", c.Generate.Policy)
	v.SetDefault("generate.seed", c.Generate.Seed)
	v.SetDefault("generate.max_tokens", c.Generate.MaxTokens)
	v.SetDefault("generate.retries", c.Generate.Retries)
	v.SetDefault("generate.joiner", c.Generate.Joiner)
	v.SetDefault("generate.emit_tail", c.Generate.EmitTail)
	v.SetDefault("tokenizer.kind", c.Tokenizer.Kind)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.workspace", "workspace")
	v.RegisterAlias("paths.corpus_dir", "paths-corpus-dir")
	v.RegisterAlias("paths.model_dir", "paths-model-dir")
	v.RegisterAlias("paths.stopwords", "paths-stopwords")
	v.RegisterAlias("paths.tokenizer_model", "paths-tokenizer-model")
	v.RegisterAlias("paths.dictionary", "paths-dictionary")
	v.RegisterAlias("corpus.merge_threshold", "corpus-merge-threshold")
	v.RegisterAlias("corpus.min_line_chars", "corpus-min-line-chars")
	v.RegisterAlias("corpus.encodings", "corpus-encodings")
	v.RegisterAlias("corpus.full_stop", "corpus-full-stop")
	v.RegisterAlias("chatlog.header_lines", "chatlog-header-lines")
	v.RegisterAlias("chatlog.handles", "chatlog-handles")
	v.RegisterAlias("chatlog.names", "chatlog-names")
	v.RegisterAlias("chatlog.exclude_marker", "chatlog-exclude-marker")
	v.RegisterAlias("generate.order", "order")
	v.RegisterAlias("generate.policy", "policy")
	v.RegisterAlias("generate.seed", "seed")
	v.RegisterAlias("generate.max_tokens", "max-tokens")
	v.RegisterAlias("generate.retries", "generate-retries")
	v.RegisterAlias("generate.joiner", "generate-joiner")
	v.RegisterAlias("generate.emit_tail", "generate-emit-tail")
	v.RegisterAlias("tokenizer.kind", "tokenizer-kind")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("log_level", "log-level")
}
