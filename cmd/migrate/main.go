// migrate creates the Postgres schema and optionally imports a Realtime Database
// JSON export into it.
//
// POSTGRES_DSN=postgres://... go run ./cmd/migrate -import export.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/klipach/courier/config"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/remote"
)

// export is the layout of a Realtime Database export of the app.
type export struct {
	Users     map[string]map[string]json.RawMessage `json:"users"`
	Usernames map[string]string                     `json:"usernames"`
}

type counts struct {
	Users     int
	Chats     int
	Messages  int
	Usernames int
}

func main() {
	importFile := flag.String("import", "", "Realtime Database JSON export to import")
	flag.Parse()

	logger := slog.New(log.NewCloudLoggingHandler())
	ctx := log.WithLogger(context.Background(), logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("error while loading config", slog.String(log.ErrorMsgLogField, err.Error()))
		os.Exit(1)
	}
	if cfg.PostgresDSN == "" {
		logger.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}
	db, err := remote.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("error while connecting to postgres", slog.String(log.ErrorMsgLogField, err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("schema ready")

	if *importFile == "" {
		return
	}
	data, err := os.ReadFile(*importFile)
	if err != nil {
		logger.Error("error while reading export", slog.String(log.ErrorMsgLogField, err.Error()))
		os.Exit(1)
	}
	var e export
	if err := json.Unmarshal(data, &e); err != nil {
		logger.Error("error while decoding export", slog.String(log.ErrorMsgLogField, err.Error()))
		os.Exit(1)
	}
	c, err := importExport(ctx, db, e)
	if err != nil {
		logger.Error("error while importing", slog.String(log.ErrorMsgLogField, err.Error()))
		os.Exit(1)
	}
	logger.Info("import done",
		slog.Int("users", c.Users),
		slog.Int("chats", c.Chats),
		slog.Int("messages", c.Messages),
		slog.Int("usernames", c.Usernames),
	)
}

// importExport writes one node per profile, chat, message and username, the
// granularity the sync layer reads and writes at.
func importExport(ctx context.Context, client remote.Client, e export) (counts, error) {
	var c counts
	for uid, user := range e.Users {
		profile := map[string]json.RawMessage{}
		for field, raw := range user {
			if field == "chats" {
				continue
			}
			profile[field] = raw
		}
		if len(profile) > 0 {
			path, err := remote.Join("users", uid)
			if err != nil {
				return c, err
			}
			fields := make(map[string]any, len(profile))
			for k, v := range profile {
				fields[k] = v
			}
			if err := client.Update(ctx, path, fields); err != nil {
				return c, err
			}
			c.Users++
		}

		var chats map[string]map[string]json.RawMessage
		if raw, ok := user["chats"]; ok {
			if err := json.Unmarshal(raw, &chats); err != nil {
				return c, fmt.Errorf("user %s: %w", uid, err)
			}
		}
		for chatID, chat := range chats {
			var messages map[string]json.RawMessage
			if raw, ok := chat["messages"]; ok {
				if err := json.Unmarshal(raw, &messages); err != nil {
					return c, fmt.Errorf("chat %s: %w", chatID, err)
				}
				delete(chat, "messages")
			}
			path, err := remote.Join("users", uid, "chats", chatID)
			if err != nil {
				return c, err
			}
			if err := client.Set(ctx, path, chat); err != nil {
				return c, err
			}
			c.Chats++
			for msgID, msg := range messages {
				msgPath, err := remote.Join("users", uid, "chats", chatID, "messages", msgID)
				if err != nil {
					return c, err
				}
				if err := client.Set(ctx, msgPath, msg); err != nil {
					return c, err
				}
				c.Messages++
			}
		}
	}
	for username, uid := range e.Usernames {
		path, err := remote.Join("usernames", username)
		if err != nil {
			return c, err
		}
		if err := client.Set(ctx, path, uid); err != nil {
			return c, err
		}
		c.Usernames++
	}
	return c, nil
}
