package tracing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrMissionID     = attribute.Key("actionboard.mission_id")
	AttrAchievementID = attribute.Key("actionboard.achievement_id")
	AttrUserHash      = attribute.Key("actionboard.user_hash")
	AttrArtifactType  = attribute.Key("actionboard.artifact_type")
	AttrXPAmount      = attribute.Key("actionboard.xp_amount")
)

// Keys that may carry personal data never reach the exporter.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"user_id":      {},
	"email":        {},
	"link_url":     {},
	"text_content": {},
	"http.url":     {},
}

const maxErrorLength = 256

// ExtractContext pulls the upstream trace context from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops blocked keys and empty string values.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		if attr.Value.Type() == attribute.STRING && strings.TrimSpace(attr.Value.AsString()) == "" {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// UserHash returns a stable pseudonym for userID that may be exported.
func UserHash(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:8])
}

// MissionAttributes describes who acted on which mission and achievement.
// Empty values are dropped.
func MissionAttributes(userID, missionID, achievementID string) []attribute.KeyValue {
	return SafeAttributes(
		AttrUserHash.String(UserHash(userID)),
		AttrMissionID.String(strings.TrimSpace(missionID)),
		AttrAchievementID.String(strings.TrimSpace(achievementID)),
	)
}

// Annotate sets attrs on the span carried by ctx, if it is recording.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(SafeAttributes(attrs...)...)
}

// SafeError truncates err's message before it is recorded on a span.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return nil
	}
	if r := []rune(msg); len(r) > maxErrorLength {
		msg = string(r[:maxErrorLength])
	}
	return errors.New(msg)
}
