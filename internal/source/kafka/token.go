// Copyright 2026 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package kafka

import (
	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// tokenProvider supplies OAUTHBEARER tokens to the consumer group's
// broker connections. The token source is expected to cache tokens
// until they expire.
type tokenProvider struct {
	source oauth2.TokenSource
}

var _ sarama.AccessTokenProvider = (*tokenProvider)(nil)

// Token implements [sarama.AccessTokenProvider]. Errors cause sarama
// to retry the broker connection.
func (t *tokenProvider) Token() (*sarama.AccessToken, error) {
	token, err := t.source.Token()
	if err != nil {
		tokenErrorCount.Inc()
		return nil, errors.Wrap(err, "could not obtain OAUTHBEARER token")
	}
	if !token.Valid() {
		tokenErrorCount.Inc()
		return nil, errors.New("token source returned an expired OAUTHBEARER token")
	}
	log.WithField("expiry", token.Expiry).Trace("using OAUTHBEARER token")
	return &sarama.AccessToken{Token: token.AccessToken}, nil
}
