// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package network

import (
	"context"
	"sort"

	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Link is one row of the connectivity map.
type Link struct {
	Details core.ConnectionDetails `json:"details"`
	Status  core.ConnectionStatus  `json:"status"`
}

// Tracker answers questions about cluster connectivity by reading the
// tree-hosted maps. It holds no state of its own.
type Tracker struct {
	connectivity core.MapView[core.ConnectionDetails, core.ConnectionStatus]
	handlers     core.MapView[core.SocketID, core.Handler]
}

func NewTracker(ctx context.Context, t *tree.Tree) (*Tracker, error) {
	connectivity, err := tree.AcquireMap[core.ConnectionDetails, core.ConnectionStatus](ctx, t, connectivityRequest())
	if err != nil {
		return nil, err
	}
	handlers, err := tree.AcquireMap[core.SocketID, core.Handler](ctx, t, handlersRequest())
	if err != nil {
		return nil, err
	}
	return &Tracker{connectivity: connectivity, handlers: handlers}, nil
}

// Status reports the last known status of the link. known is false when the
// link has never been seen.
func (t *Tracker) Status(ctx context.Context, localID, remoteID int) (status core.ConnectionStatus, known bool, err error) {
	return t.connectivity.Get(ctx, core.ConnectionDetails{LocalIdentifier: localID, RemoteIdentifier: remoteID})
}

// Links returns every known link ordered by local then remote id.
func (t *Tracker) Links(ctx context.Context) ([]Link, error) {
	entries, err := t.connectivity.EntrySet(ctx)
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(entries))
	for _, e := range entries {
		links = append(links, Link{Details: e.Key, Status: e.Value})
	}
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i].Details, links[j].Details
		if a.LocalIdentifier != b.LocalIdentifier {
			return a.LocalIdentifier < b.LocalIdentifier
		}
		return a.RemoteIdentifier < b.RemoteIdentifier
	})
	return links, nil
}

// Peers returns the remote ids currently connected to localID.
func (t *Tracker) Peers(ctx context.Context, localID int) ([]int, error) {
	links, err := t.Links(ctx)
	if err != nil {
		return nil, err
	}
	var peers []int
	for _, l := range links {
		if l.Details.LocalIdentifier == localID && l.Status == core.StatusConnected {
			peers = append(peers, l.Details.RemoteIdentifier)
		}
	}
	return peers, nil
}

// Handlers lists the active handler of every registered socket.
func (t *Tracker) Handlers(ctx context.Context) ([]core.Entry[core.SocketID, core.Handler], error) {
	entries, err := t.handlers.EntrySet(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}
