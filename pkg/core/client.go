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

package core

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewSocketID derives an identity for an accepted connection. The peer
// address is hashed into a prefix so sockets from one host group together
// in the handler registry; the suffix keeps every connection distinct.
func NewSocketID(r *http.Request) SocketID {
	suffix := uuid.New().String()[:8]
	if r == nil || r.RemoteAddr == "" {
		return SocketID("local-" + suffix)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	if strings.Contains(host, ":") {
		if ip := net.ParseIP(host); ip != nil {
			host = ip.String()
		}
	}

	hash := sha256.Sum256([]byte(host))
	return SocketID(hex.EncodeToString(hash[:])[:12] + "-" + suffix)
}

// DialedSocketID names the socket of an outbound cluster link.
func DialedSocketID(remoteHost int) SocketID {
	return SocketID("dial-" + strconv.Itoa(remoteHost) + "-" + uuid.New().String()[:8])
}
