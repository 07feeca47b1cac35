// Package registry implements the optional worker registry (addition K):
// this process registers itself in etcd with a TTL lease purely for
// operator visibility into which workers are live. Nothing in the claim
// loop's correctness depends on this — the at-most-one-processing
// invariant is fully carried by the claim transaction. Grounded on the
// teacher's pkg/registry/etcd_registry.go.
package registry

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const leaseTTLSeconds = 15

// WorkerRegistry registers one worker process under /video-workers/{id}.
type WorkerRegistry struct {
	client  *clientv3.Client
	leaseID clientv3.LeaseID
	key     string
	cancel  context.CancelFunc
}

func NewWorkerRegistry(endpoints []string, workerID string) (*WorkerRegistry, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	return &WorkerRegistry{
		client: client,
		key:    fmt.Sprintf("/video-workers/%s", workerID),
	}, nil
}

// Register grants a TTL lease, writes this worker's key under it and
// starts the keep-alive loop. Call Deregister to release the lease.
func (r *WorkerRegistry) Register(ctx context.Context) error {
	lease, err := r.client.Grant(ctx, leaseTTLSeconds)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}
	r.leaseID = lease.ID

	if _, err := r.client.Put(ctx, r.key, time.Now().UTC().Format(time.RFC3339), clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("put worker key: %w", err)
	}

	keepAliveCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	ch, err := r.client.KeepAlive(keepAliveCtx, r.leaseID)
	if err != nil {
		cancel()
		return fmt.Errorf("keep alive: %w", err)
	}
	go drain(ch)

	return nil
}

// drain discards keep-alive responses; etcd requires the channel be
// consumed or the lease renewal stalls.
func drain(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for range ch {
	}
}

func (r *WorkerRegistry) Deregister(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.leaseID != 0 {
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			return fmt.Errorf("revoke lease: %w", err)
		}
	}
	return r.client.Close()
}
