// Package streamup is a resumable chunked video upload engine.
//
// It uploads local video files to a remote video registry over a
// TUS-style resumable protocol: uploads survive process restarts and
// connectivity loss, resuming from the last server-acknowledged byte
// offset. A durable FIFO queue admits one transfer at a time.
//
// # Overview
//
// The Engine type wires the whole stack from a configuration file:
//
//   - queue: admission, pause/resume/cancel, durable JSON persistence
//   - tus: the resumable upload protocol session
//   - videoapi: the remote registry's REST façade
//   - reachability: connectivity probing driving protective pauses
//   - catalog: local history reconciled against the remote catalog
//
// # Quick Start
//
// Enqueue a file and run the engine until the queue drains:
//
//	cfg, err := config.Load("~/.streamup/config.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine, err := streamup.NewEngine(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	engine.Start(context.Background())
//	engine.Enqueue([]string{"movie.mp4"}, "7", "")
//
// Upload state lives in a single JSON record; a second process sharing
// the record is rejected by a file lock.
package streamup
