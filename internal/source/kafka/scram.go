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
	"crypto/sha256"
	"crypto/sha512"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// Generators for the SCRAM-SHA-256 and SCRAM-SHA-512 SASL mechanisms,
// used as a sarama SCRAMClientGeneratorFunc.
var (
	sha256ClientGenerator = func() sarama.SCRAMClient {
		return &scramClient{hashGen: scram.HashGeneratorFcn(sha256.New)}
	}
	sha512ClientGenerator = func() sarama.SCRAMClient {
		return &scramClient{hashGen: scram.HashGeneratorFcn(sha512.New)}
	}
)

type scramClient struct {
	conv    *scram.ClientConversation
	hashGen scram.HashGeneratorFcn
}

var _ sarama.SCRAMClient = (*scramClient)(nil)

// Begin implements [sarama.SCRAMClient].
func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hashGen.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.conv = client.NewConversation()
	return nil
}

// Step implements [sarama.SCRAMClient]. It is called repeatedly until
// it errors or Done returns true.
func (c *scramClient) Step(challenge string) (string, error) {
	return c.conv.Step(challenge)
}

// Done implements [sarama.SCRAMClient].
func (c *scramClient) Done() bool {
	return c.conv.Done()
}
