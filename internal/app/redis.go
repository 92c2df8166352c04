package app

import (
	"renda-edge/internal/common/logging"
	"renda-edge/internal/redis"
)

func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled() {
		app.Logger.Info("Redis: Not configured (shared rate limits, shared cache and job locks disabled)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDBNumber(),
		PoolSize: app.Config.RedisPoolSizeNumber(),
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}
