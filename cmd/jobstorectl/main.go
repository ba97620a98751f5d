// Command jobstorectl is a small administrative CLI over the jobstore
// facade, grounded on the teacher's cmd/mailgrid.go: pflag for flags, a
// config.LoadConfig call, then a dispatch over a handful of subcommands.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/kvscheduler/quartzredis/config"
	"github.com/kvscheduler/quartzredis/internal/codec"
	"github.com/kvscheduler/quartzredis/internal/rkv"
	"github.com/kvscheduler/quartzredis/internal/types"
	"github.com/kvscheduler/quartzredis/jobstore"
	"github.com/kvscheduler/quartzredis/logger"
)

func main() {
	var configPath string
	pflag.StringVar(&configPath, "config", "config.json", "path to JobStore config JSON")
	pflag.Parse()

	cmd := "jobs"
	args := pflag.Args()
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	kv := rkv.NewRedisClient(rdb)
	js := jobstore.New(kv, codec.NewJSON(), jobstore.Options{
		KeyPrefix:          cfg.KeyPrefix,
		KeyDelimiter:       cfg.KeyDelimiter,
		InstanceID:         cfg.InstanceID,
		RedisLockTimeout:   cfg.RedisLockTimeout,
		TriggerLockTimeout: cfg.TriggerLockTimeout,
		MisfireThreshold:   cfg.MisfireThreshold,
	}, logger.New("jobstorectl"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := dispatch(ctx, js, cmd, args); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func dispatch(ctx context.Context, js *jobstore.JobStore, cmd string, args []string) error {
	switch cmd {
	case "jobs":
		return listJobs(ctx, js)
	case "triggers":
		return listTriggers(ctx, js)
	case "state":
		return triggerState(ctx, js, args)
	case "pause-job":
		return pauseJob(ctx, js, args)
	case "resume-job":
		return resumeJob(ctx, js, args)
	case "remove-job":
		return removeJob(ctx, js, args)
	case "clear":
		return js.ClearAllSchedulingData(ctx)
	default:
		return fmt.Errorf("unknown command %q (expected jobs|triggers|state|pause-job|resume-job|remove-job|clear)", cmd)
	}
}

func listJobs(ctx context.Context, js *jobstore.JobStore) error {
	keys, err := js.GetJobKeys(ctx, types.GroupAny())
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Println(k.String())
	}
	return nil
}

func listTriggers(ctx context.Context, js *jobstore.JobStore) error {
	keys, err := js.GetTriggerKeys(ctx, types.GroupAny())
	if err != nil {
		return err
	}
	for _, k := range keys {
		state, err := js.GetTriggerState(ctx, k)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", k.String(), state)
	}
	return nil
}

func triggerState(ctx context.Context, js *jobstore.JobStore, args []string) error {
	key, err := parseTriggerKey(args)
	if err != nil {
		return err
	}
	state, err := js.GetTriggerState(ctx, key)
	if err != nil {
		return err
	}
	fmt.Println(state)
	return nil
}

func pauseJob(ctx context.Context, js *jobstore.JobStore, args []string) error {
	key, err := parseJobKey(args)
	if err != nil {
		return err
	}
	return js.PauseJob(ctx, key)
}

func resumeJob(ctx context.Context, js *jobstore.JobStore, args []string) error {
	key, err := parseJobKey(args)
	if err != nil {
		return err
	}
	return js.ResumeJob(ctx, key)
}

func removeJob(ctx context.Context, js *jobstore.JobStore, args []string) error {
	key, err := parseJobKey(args)
	if err != nil {
		return err
	}
	_, err = js.RemoveJob(ctx, key)
	return err
}

func parseJobKey(args []string) (types.JobKey, error) {
	if len(args) < 1 {
		return types.JobKey{}, fmt.Errorf("expected NAME [GROUP]")
	}
	group := types.DefaultGroup
	if len(args) > 1 {
		group = args[1]
	}
	return types.JobKey{Name: args[0], Group: group}, nil
}

func parseTriggerKey(args []string) (types.TriggerKey, error) {
	if len(args) < 1 {
		return types.TriggerKey{}, fmt.Errorf("expected NAME [GROUP]")
	}
	group := types.DefaultGroup
	if len(args) > 1 {
		group = args[1]
	}
	return types.TriggerKey{Name: args[0], Group: group}, nil
}
