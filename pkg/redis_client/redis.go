package redis_client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/transitsound/pkg/util"
)

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

const queueConnectionTag = "transitsound"

type Connection struct {
	Client *redis.Client
	Queue  rmq.Connection
}

type Options struct {
	Address  string
	Password string
	Database int
}

// OptionsFromEnvironment reads TRAVIGO_REDIS_* over the local defaults
func OptionsFromEnvironment() (Options, error) {
	options := Options{
		Address:  defaultConnectionAddress,
		Password: defaultConnectionPassword,
		Database: defaultDatabase,
	}

	env := util.GetEnvironmentVariables()

	if env["TRAVIGO_REDIS_ADDRESS"] != "" {
		options.Address = env["TRAVIGO_REDIS_ADDRESS"]
	}

	if env["TRAVIGO_REDIS_PASSWORD"] != "" {
		options.Password = env["TRAVIGO_REDIS_PASSWORD"]
	}

	if env["TRAVIGO_REDIS_DATABASE"] != "" {
		n, err := strconv.Atoi(env["TRAVIGO_REDIS_DATABASE"])
		if err != nil {
			return options, fmt.Errorf("parse TRAVIGO_REDIS_DATABASE: %w", err)
		}
		options.Database = n
	}

	return options, nil
}

func Connect(ctx context.Context, options Options) (*Connection, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     options.Address,
		Password: options.Password,
		DB:       options.Database,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", options.Address, err)
	}

	queue, err := rmq.OpenConnectionWithRedisClient(queueConnectionTag, client, nil)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open queue connection: %w", err)
	}

	return &Connection{
		Client: client,
		Queue:  queue,
	}, nil
}

func (c *Connection) Close() error {
	<-c.Queue.StopAllConsuming()
	return c.Client.Close()
}
