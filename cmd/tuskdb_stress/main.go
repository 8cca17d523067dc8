package main

import (
	"flag"
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tuskdb/pkg/btree"
	"tuskdb/pkg/config"
	"tuskdb/pkg/database"
)

var log = logrus.New()

// worker runs its share of the workload: random inserts, deletes and lookups
// over a bounded keyspace on the shared tree.
func worker(tree *btree.BTree, seed int64, numOps int, keyspace int64) error {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < numOps; i++ {
		key := rng.Int63n(keyspace)
		switch rng.Intn(4) {
		case 0:
			if err := tree.Remove(key, nil); err != nil {
				return err
			}
		case 1:
			if _, _, err := tree.GetValue(key); err != nil {
				return err
			}
		default:
			err := tree.Insert(key, key*2, nil)
			if err != nil && err != btree.ErrDuplicateKey {
				return err
			}
		}
	}
	return nil
}

// Run a concurrent random workload against one shared tree, then verify the
// tree's invariants and the buffer pool's pin accounting.
func main() {
	var dataFlag = flag.String("data", "data", "data directory")
	var poolFlag = flag.Int("pool", config.DefaultPoolSize, "buffer pool size in frames")
	var nFlag = flag.Int("n", 4, "number of worker goroutines")
	var opsFlag = flag.Int("ops", 10000, "operations per worker")
	var keysFlag = flag.Int64("keyspace", 4096, "size of the random keyspace")
	var seedFlag = flag.Int64("seed", 1, "base random seed")
	flag.Parse()

	db, err := database.OpenWithPoolSize(*dataFlag, *poolFlag)
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	tree, err := db.CreateIndex("stress")
	if err != nil {
		if tree, err = db.GetIndex("stress"); err != nil {
			log.WithError(err).Fatal("could not open index")
		}
	}
	log.WithFields(logrus.Fields{
		"workers":  *nFlag,
		"ops":      *opsFlag,
		"keyspace": *keysFlag,
		"pool":     *poolFlag,
	}).Info("starting workload")

	var g errgroup.Group
	for i := 0; i < *nFlag; i++ {
		seed := *seedFlag + int64(i)
		g.Go(func() error {
			return worker(tree, seed, *opsFlag, *keysFlag)
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("workload failed")
	}

	failed := false
	if err := tree.Verify(); err != nil {
		log.WithError(err).Error("tree invariants violated")
		failed = true
	}
	if !db.BufferPool().AllUnpinned() {
		log.Error("buffer pool has pinned frames after quiescence")
		failed = true
	}
	if err := db.Close(); err != nil {
		log.WithError(err).Error("close failed")
		failed = true
	}
	if failed {
		os.Exit(1)
	}
	log.Info("workload complete, all invariants hold")
}
