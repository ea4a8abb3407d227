package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/TheBitDrifter/conveyor"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var stressCmd = &cobra.Command{
	Use:     "stress",
	Short:   "Run the storage stress harness",
	Long:    `Spawn a population of subjects, then hammer chunk iteration, trait migration, and deferred despawns for a fixed number of ticks. Prints per-phase timings.`,
	RunE:    runStress,
	PreRunE: bindStressFlags,
}

func init() {
	key := "subjects"
	stressCmd.Flags().Int(key, 100000, "number of subjects to spawn")

	key = "ticks"
	stressCmd.Flags().Int(key, 100, "number of iteration passes")

	key = "workers"
	stressCmd.Flags().Int(key, 4, "worker goroutines for the concurrent phase")

	key = "churn"
	stressCmd.Flags().Int(key, 1000, "subjects despawned and respawned per tick")

	key = "metrics-endpoint"
	stressCmd.Flags().String(key, "", "serve Prometheus metrics on this address (e.g. :9091), empty to disable")
}

func bindStressFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

type stressPosition struct{ X, Y float64 }

type stressVelocity struct{ X, Y float64 }

type stressHealth struct{ HP int }

func runStress(cmd *cobra.Command, _ []string) error {
	subjects := viper.GetInt("subjects")
	ticks := viper.GetInt("ticks")
	workers := viper.GetInt("workers")
	churn := viper.GetInt("churn")

	if endpoint := viper.GetString("metrics-endpoint"); endpoint != "" {
		go func() {
			http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
				metrics.WritePrometheus(w, true)
			})
			if err := http.ListenAndServe(endpoint, nil); err != nil {
				slog.Error("metrics endpoint failed", "err", err)
			}
		}()
		slog.Info("serving metrics", "endpoint", endpoint)
	}

	position := conveyor.FactoryNewTrait[stressPosition]()
	velocity := conveyor.FactoryNewTrait[stressVelocity]()
	health := conveyor.FactoryNewTrait[stressHealth]()

	mech := conveyor.Factory.NewMechanism()

	start := time.Now()
	handles := make([]conveyor.SubjectHandle, 0, subjects)
	for i := 0; i < subjects; i++ {
		var h conveyor.SubjectHandle
		if i%3 == 0 {
			h, _ = mech.Spawn(position, velocity, health)
		} else {
			h, _ = mech.Spawn(position, velocity)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		mech.Boot(h)
	}
	slog.Info("spawn phase done", "subjects", subjects, "elapsed", time.Since(start))

	filter := conveyor.Factory.NewFilter().Require(position, velocity)

	start = time.Now()
	var visited int
	for t := 0; t < ticks; t++ {
		cur := conveyor.Factory.NewCursor(filter, mech)
		for cur.Next() {
			pos := position.GetFromCursor(cur)
			vel := velocity.GetFromCursor(cur)
			pos.X += vel.X
			pos.Y += vel.Y
			visited++
		}
	}
	slog.Info("iteration phase done", "ticks", ticks, "visited", visited, "elapsed", time.Since(start))

	start = time.Now()
	err := mech.OperateConcurrently(context.Background(), filter, workers,
		func(_ context.Context, ch *conveyor.Chunk, slot int) error {
			pos := position.GetFromChunk(ch, slot)
			pos.X *= 0.5
			pos.Y *= 0.5
			return nil
		})
	if err != nil {
		return fmt.Errorf("concurrent phase failed: %w", err)
	}
	slog.Info("concurrent phase done", "workers", workers, "elapsed", time.Since(start))

	start = time.Now()
	for t := 0; t < ticks && churn > 0; t++ {
		cur := conveyor.Factory.NewCursor(filter, mech)
		removed := 0
		for cur.Next() && removed < churn {
			mech.Despawn(cur.CurrentSubject())
			removed++
		}
		cur.Reset()
		for i := 0; i < removed; i++ {
			mech.Spawn(position, velocity)
		}
	}
	slog.Info("churn phase done", "ticks", ticks, "churn", churn,
		"live", mech.SubjectCount(), "elapsed", time.Since(start))

	return nil
}
