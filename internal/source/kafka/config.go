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
	"context"
	"net/url"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2/clientcredentials"
)

// Defaults for flags.
const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = time.Second
	DefaultVersion       = "2.6.0"
)

// Config contains the configuration necessary for consuming flat
// messages from a Kafka cluster.
type Config struct {
	BatchSize     int           // How many messages to accumulate before applying them.
	Brokers       []string      // The address of the Kafka brokers.
	FlushInterval time.Duration // Maximum delay before applying a partial batch.
	Group         string        // The Kafka consumer group id.
	Oldest        bool          // Start from the oldest offset if the group has none.
	Strategy      string        // Kafka consumer group re-balance strategy.
	Topics        []string      // The topics that the consumer should use.
	Version       string        // The Kafka protocol version.

	// SASL
	saslClientID     string
	saslClientSecret string
	saslGrantType    string
	saslMechanism    string
	saslScopes       []string
	saslTokenURL     string
	saslUser         string
	saslPassword     string

	// The following are computed.

	saramaConfig *sarama.Config
}

// Bind adds flags to the set.
func (c *Config) Bind(f *pflag.FlagSet) {
	f.IntVar(&c.BatchSize, "kafkaBatchSize", DefaultBatchSize,
		"messages to accumulate before applying them to the target")
	f.StringArrayVar(&c.Brokers, "kafkaBroker", nil, "address of Kafka broker(s)")
	f.DurationVar(&c.FlushInterval, "kafkaFlushInterval", DefaultFlushInterval,
		"the maximum delay before applying a partial batch")
	f.StringVar(&c.Group, "kafkaGroup", "", "the Kafka consumer group id")
	f.BoolVar(&c.Oldest, "kafkaOldest", false,
		"consume from the oldest available offset if the group has no committed offset")
	f.StringVar(&c.Strategy, "kafkaStrategy", "sticky", "Kafka consumer group re-balance strategy")
	f.StringArrayVar(&c.Topics, "kafkaTopic", nil, "the topic(s) that the consumer should use")
	f.StringVar(&c.Version, "kafkaVersion", DefaultVersion, "the Kafka protocol version")

	// SASL
	f.StringVar(&c.saslClientID, "kafkaSaslClientId", "", "client ID for OAuth authentication from a third-party provider")
	f.StringVar(&c.saslClientSecret, "kafkaSaslClientSecret", "", "client secret for OAuth authentication from a third-party provider")
	f.StringVar(&c.saslGrantType, "kafkaSaslGrantType", "", "override the default OAuth client credentials grant type for other implementations")
	f.StringVar(&c.saslMechanism, "kafkaSaslMechanism", "", "can be set to OAUTHBEARER, SCRAM-SHA-256, SCRAM-SHA-512, or PLAIN")
	f.StringArrayVar(&c.saslScopes, "kafkaSaslScope", nil, "scopes that the OAuth token should have access for")
	f.StringVar(&c.saslTokenURL, "kafkaSaslTokenURL", "", "client token URL for OAuth authentication from a third-party provider")
	f.StringVar(&c.saslUser, "kafkaSaslUser", "", "SASL username")
	f.StringVar(&c.saslPassword, "kafkaSaslPassword", "", "SASL password")
}

// Preflight updates the configuration with sane defaults or returns an
// error if there are missing options for which a default cannot be
// provided.
func (c *Config) Preflight(ctx context.Context) error {
	if c.Group == "" {
		return errors.New("no group was configured")
	}
	if len(c.Brokers) == 0 {
		return errors.New("no brokers were configured")
	}
	if len(c.Topics) == 0 {
		return errors.New("no topics were configured")
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize < 0 {
		return errors.Errorf("batch size must be positive: %d", c.BatchSize)
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}

	sc := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return errors.WithStack(err)
	}
	sc.Version = version
	sc.ClientID = "rdbsync-" + uuid.NewString()

	switch c.Strategy {
	case "", "sticky":
		sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	case "roundrobin":
		sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	case "range":
		sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	default:
		return errors.Errorf("unrecognized consumer rebalance strategy: %s", c.Strategy)
	}

	// If saslMechanism is set, then authentication is done via SASL.
	if c.saslMechanism != "" {
		sc.Net.SASL.Enable = true
		switch c.saslMechanism {
		case sarama.SASLTypeSCRAMSHA512:
			sc.Net.SASL.SCRAMClientGeneratorFunc = sha512ClientGenerator
		case sarama.SASLTypeSCRAMSHA256:
			sc.Net.SASL.SCRAMClientGeneratorFunc = sha256ClientGenerator
		case sarama.SASLTypeOAuth:
			var err error
			sc.Net.SASL.TokenProvider, err = c.newTokenProvider(ctx)
			if err != nil {
				return err
			}
		}
		sc.Net.SASL.Mechanism = sarama.SASLMechanism(c.saslMechanism)
		sc.Net.SASL.User = c.saslUser
		sc.Net.SASL.Password = c.saslPassword
		log.Infof("using SASL %s", c.saslMechanism)
	}
	if c.Oldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	c.saramaConfig = sc
	return errors.WithStack(sc.Validate())
}

func (c *Config) newTokenProvider(ctx context.Context) (sarama.AccessTokenProvider, error) {
	// Non-compliant authorization servers may require a custom grant
	// type.
	var endpointParams url.Values
	if c.saslGrantType != "" {
		endpointParams = url.Values{"grant_type": {c.saslGrantType}}
	}
	if c.saslTokenURL == "" {
		return nil, errors.New("OAUTH2 requires a token URL")
	}
	tokenURL, err := url.Parse(c.saslTokenURL)
	if err != nil {
		return nil, errors.Wrap(err, "malformed token url")
	}
	if c.saslClientID == "" {
		return nil, errors.New("OAUTH2 requires a client id")
	}
	if c.saslClientSecret == "" {
		return nil, errors.New("OAUTH2 requires a client secret")
	}
	cfg := clientcredentials.Config{
		ClientID:       c.saslClientID,
		ClientSecret:   c.saslClientSecret,
		TokenURL:       tokenURL.String(),
		Scopes:         c.saslScopes,
		EndpointParams: endpointParams,
	}
	return &tokenProvider{source: cfg.TokenSource(ctx)}, nil
}
