package kafka

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

const (
	TopicMoleculeEvents   = "molstruct.molecule.events"
	TopicIngestRequested  = "molstruct.ingest.requested"
	TopicIngestDeadLetter = "molstruct.ingest.dead_letter"
)

const day = 24 * time.Hour

// DefaultTopics is what the API server and the worker expect to exist.
// Dead letters keep a single partition and a longer retention.
func DefaultTopics(partitions, replication int) []common.TopicConfig {
	week, month := (7 * day).Milliseconds(), (30 * day).Milliseconds()
	return []common.TopicConfig{
		{Name: TopicMoleculeEvents, Partitions: partitions, ReplicationFactor: replication, RetentionMs: week},
		{Name: TopicIngestRequested, Partitions: partitions, ReplicationFactor: replication, RetentionMs: week},
		{Name: TopicIngestDeadLetter, Partitions: 1, ReplicationFactor: replication, RetentionMs: month},
	}
}

// adminClient is the part of *kafka.Client the topic manager uses.
type adminClient interface {
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
	CreateTopics(ctx context.Context, req *kafka.CreateTopicsRequest) (*kafka.CreateTopicsResponse, error)
}

// TopicManager creates missing topics through the cluster admin API.
type TopicManager struct {
	admin     adminClient
	transport *kafka.Transport
	logger    logging.Logger
}

func NewTopicManager(brokers []string, sec SecurityConfig, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers are required")
	}
	tlsCfg, err := sec.tlsConfig()
	if err != nil {
		return nil, err
	}
	mech, err := sec.saslMechanism()
	if err != nil {
		return nil, err
	}
	tr := &kafka.Transport{DialTimeout: 10 * time.Second, TLS: tlsCfg, SASL: mech}
	return &TopicManager{
		admin:     &kafka.Client{Addr: kafka.TCP(brokers...), Timeout: 30 * time.Second, Transport: tr},
		transport: tr,
		logger:    logger,
	}, nil
}

func validateTopic(cfg common.TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name is required")
	}
	if cfg.Partitions < 1 || cfg.ReplicationFactor < 1 {
		return errors.New(errors.ErrCodeValidation, "topic needs at least one partition and one replica").WithDetail(cfg.Name)
	}
	return nil
}

func toKafkaTopic(cfg common.TopicConfig) kafka.TopicConfig {
	entries := make(map[string]string, len(cfg.Config)+2)
	for k, v := range cfg.Config {
		entries[k] = v
	}
	if cfg.RetentionMs > 0 {
		entries["retention.ms"] = strconv.FormatInt(cfg.RetentionMs, 10)
	}
	if cfg.CleanupPolicy != "" {
		entries["cleanup.policy"] = cfg.CleanupPolicy
	}
	names := make([]string, 0, len(entries))
	for k := range entries {
		names = append(names, k)
	}
	sort.Strings(names)

	kt := kafka.TopicConfig{Topic: cfg.Name, NumPartitions: cfg.Partitions, ReplicationFactor: cfg.ReplicationFactor}
	for _, k := range names {
		kt.ConfigEntries = append(kt.ConfigEntries, kafka.ConfigEntry{ConfigName: k, ConfigValue: entries[k]})
	}
	return kt
}

// existing returns the subset of names the cluster already knows.
func (m *TopicManager) existing(ctx context.Context, names []string) (map[string]bool, error) {
	meta, err := m.admin.Metadata(ctx, &kafka.MetadataRequest{Topics: names})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMessageQueueError, "kafka metadata request failed")
	}
	found := make(map[string]bool, len(meta.Topics))
	for _, t := range meta.Topics {
		if t.Error == nil && len(t.Partitions) > 0 {
			found[t.Name] = true
		}
	}
	return found, nil
}

// EnsureTopics creates the topics that do not exist yet in one request.
// Losing a creation race to another instance is not an error.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []common.TopicConfig) error {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		if err := validateTopic(t); err != nil {
			return err
		}
		names = append(names, t.Name)
	}
	if len(names) == 0 {
		return nil
	}

	found, err := m.existing(ctx, names)
	if err != nil {
		return err
	}
	req := &kafka.CreateTopicsRequest{}
	for _, t := range topics {
		if !found[t.Name] {
			req.Topics = append(req.Topics, toKafkaTopic(t))
		}
	}
	if len(req.Topics) == 0 {
		return nil
	}

	resp, err := m.admin.CreateTopics(ctx, req)
	if err != nil {
		return errors.Wrap(err, errors.CodeMessageQueueError, "kafka create topics request failed")
	}
	for _, kt := range req.Topics {
		switch terr := resp.Errors[kt.Topic]; {
		case terr == nil:
			m.logger.Info("kafka topic created", logging.String("topic", kt.Topic), logging.Int("partitions", kt.NumPartitions))
		case errors.Is(terr, kafka.TopicAlreadyExists):
		default:
			return errors.Wrap(terr, errors.CodeMessageQueueError, "kafka topic creation failed").WithDetail(kt.Topic)
		}
	}
	return nil
}

// Close drops the idle admin connections.
func (m *TopicManager) Close() error {
	if m.transport != nil {
		m.transport.CloseIdleConnections()
	}
	return nil
}

//Personal.AI order the ending
