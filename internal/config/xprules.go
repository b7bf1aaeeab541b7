package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/gosimple/slug"
	artifactdomain "github.com/smallbiznis/actionboard/internal/artifact/domain"
	"github.com/smallbiznis/actionboard/pkg/telemetry"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// XPRules are the tunable constants of XP accounting.
type XPRules struct {
	PostingPointsPerUnit int64 `mapstructure:"postingPointsPerUnit"`
	PosterPointsPerUnit  int64 `mapstructure:"posterPointsPerUnit"`
	PosterCount          int   `mapstructure:"posterCount"`
	MaxPostingCount      int   `mapstructure:"maxPostingCount"`
	// BonusMissionSlugs lists missions whose recorded bonus is reversed on cancel.
	BonusMissionSlugs []string `mapstructure:"bonusMissionSlugs"`
	// BaseXPExemptTypes lists required artifact types that earn bonus XP only.
	BaseXPExemptTypes []string `mapstructure:"baseXPExemptTypes"`
	// PosterBoardMissionSlug identifies the mission whose boards count toward board completion.
	PosterBoardMissionSlug string `mapstructure:"posterBoardMissionSlug"`
}

func DefaultXPRules() XPRules {
	return XPRules{
		PostingPointsPerUnit:   50,
		PosterPointsPerUnit:    400,
		PosterCount:            1,
		MaxPostingCount:        2000,
		BonusMissionSlugs:      []string{"posting-magazine", "put-up-poster-on-board"},
		BaseXPExemptTypes:      []string{string(artifactdomain.ArtifactTypePosting)},
		PosterBoardMissionSlug: "put-up-poster-on-board",
	}
}

// IsBonusMission reports whether cancelling the mission must reverse its bonus.
func (r XPRules) IsBonusMission(missionSlug string) bool {
	missionSlug = slug.Make(missionSlug)
	for _, s := range r.BonusMissionSlugs {
		if s == missionSlug {
			return true
		}
	}
	return false
}

// IsPosterBoardMission reports whether missionSlug is the mission tracked per poster board.
func (r XPRules) IsPosterBoardMission(missionSlug string) bool {
	return r.PosterBoardMissionSlug != "" && slug.Make(missionSlug) == r.PosterBoardMissionSlug
}

// EarnsBaseXP reports whether completing a mission requiring t grants base XP.
func (r XPRules) EarnsBaseXP(t artifactdomain.ArtifactType) bool {
	for _, exempt := range r.BaseXPExemptTypes {
		if exempt == string(t) {
			return false
		}
	}
	return true
}

// Limits returns the submission validation limits derived from the rules.
func (r XPRules) Limits() artifactdomain.Limits {
	return artifactdomain.Limits{MaxPostingCount: r.MaxPostingCount}
}

func (r XPRules) normalize() XPRules {
	slugs := make([]string, 0, len(r.BonusMissionSlugs))
	for _, s := range r.BonusMissionSlugs {
		if s = slug.Make(s); s != "" {
			slugs = append(slugs, s)
		}
	}
	r.BonusMissionSlugs = slugs

	types := make([]string, 0, len(r.BaseXPExemptTypes))
	for _, raw := range r.BaseXPExemptTypes {
		if t, ok := artifactdomain.ParseArtifactType(raw); ok {
			types = append(types, string(t))
		} else {
			types = append(types, strings.TrimSpace(raw))
		}
	}
	r.BaseXPExemptTypes = types
	r.PosterBoardMissionSlug = slug.Make(r.PosterBoardMissionSlug)
	return r
}

func validateXPRules(r XPRules) error {
	if r.PostingPointsPerUnit <= 0 {
		return errors.New("xp.postingPointsPerUnit must be positive")
	}
	if r.PosterPointsPerUnit <= 0 {
		return errors.New("xp.posterPointsPerUnit must be positive")
	}
	if r.PosterCount <= 0 {
		return errors.New("xp.posterCount must be positive")
	}
	if r.MaxPostingCount <= 0 {
		return errors.New("xp.maxPostingCount must be positive")
	}
	for _, raw := range r.BaseXPExemptTypes {
		if _, ok := artifactdomain.ParseArtifactType(raw); !ok {
			return fmt.Errorf("xp.baseXPExemptTypes: unknown artifact type %q", raw)
		}
	}
	return nil
}

type XPRulesHolder struct {
	current atomic.Value // holds XPRules
	v       *viper.Viper
	log     *zap.Logger
}

// NewXPRulesHolder reads xprules.yml from the standard locations and
// keeps it current while the file changes.
func NewXPRulesHolder(log *zap.Logger, metrics *telemetry.Metrics) (*XPRulesHolder, error) {
	holder, err := LoadXPRules(log, "/etc/actionboard", ".")
	if err != nil {
		return nil, err
	}
	holder.v.WatchConfig()
	holder.v.OnConfigChange(func(e fsnotify.Event) {
		err := holder.reload()
		metrics.RecordXPRulesReload(err == nil)
		if err != nil {
			holder.log.Warn("xp rules reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.log.Info("xp rules reloaded", zap.String("file", e.Name))
	})
	return holder, nil
}

// LoadXPRules reads the rules once from the first xprules.yml found in paths.
// Missing files fall back to DefaultXPRules; env vars such as
// ACTIONBOARD_XP_POSTERPOINTSPERUNIT override either.
func LoadXPRules(log *zap.Logger, paths ...string) (*XPRulesHolder, error) {
	v := viper.New()
	v.SetConfigName("xprules")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("ACTIONBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultXPRules()
	v.SetDefault("xp.postingPointsPerUnit", defaults.PostingPointsPerUnit)
	v.SetDefault("xp.posterPointsPerUnit", defaults.PosterPointsPerUnit)
	v.SetDefault("xp.posterCount", defaults.PosterCount)
	v.SetDefault("xp.maxPostingCount", defaults.MaxPostingCount)
	v.SetDefault("xp.bonusMissionSlugs", defaults.BonusMissionSlugs)
	v.SetDefault("xp.baseXPExemptTypes", defaults.BaseXPExemptTypes)
	v.SetDefault("xp.posterBoardMissionSlug", defaults.PosterBoardMissionSlug)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if log == nil {
		log = zap.NewNop()
	}
	holder := &XPRulesHolder{v: v, log: log.Named("config.xprules")}
	if err := holder.reload(); err != nil {
		return nil, err
	}
	return holder, nil
}

// NewStaticXPRules returns a holder that never reloads.
func NewStaticXPRules(rules XPRules) *XPRulesHolder {
	holder := &XPRulesHolder{log: zap.NewNop()}
	holder.current.Store(rules.normalize())
	return holder
}

func (h *XPRulesHolder) reload() error {
	// Unmarshal walks leaf keys so file values merge with defaults and env.
	var file struct {
		XP XPRules `mapstructure:"xp"`
	}
	if err := h.v.Unmarshal(&file); err != nil {
		return err
	}
	rules := file.XP
	if err := validateXPRules(rules); err != nil {
		return err
	}
	h.current.Store(rules.normalize())
	return nil
}

func (h *XPRulesHolder) Get() XPRules {
	return h.current.Load().(XPRules)
}
