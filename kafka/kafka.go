// Package kafka publishes chat session lifecycle events and tails them for
// auditing.
package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"ShopChat/config"

	"github.com/IBM/sarama"
)

// NewSaramaConfig builds the client configuration shared by the lifecycle
// producer and the audit consumer.
func NewSaramaConfig(cfg *config.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.ClientID = "shopchat"

	// producer
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	// one chat's transitions stay on one partition, in order
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Interceptors = []sarama.ProducerInterceptor{NewLifecycleInterceptor()}

	// consumer
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	// SASL and TLS
	if cfg.Username != "" && cfg.Password != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User = cfg.Username
		sc.Net.SASL.Password = cfg.Password
		sc.Net.SASL.Handshake = true
		if err := setMechanism(sc, cfg.Mechanism); err != nil {
			return nil, err
		}
	}

	// TLS
	if cfg.UseTLS {
		tlsConfig, err := createTLSConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
		if err != nil {
			return nil, err
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsConfig
	}

	return sc, sc.Validate()
}

// createTLSConfig builds a client TLS config from PEM files.
func createTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	// CA
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("kafka: no certificates found in " + caFile)
		}
		tlsConfig.RootCAs = pool
	}

	// client certificate
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
