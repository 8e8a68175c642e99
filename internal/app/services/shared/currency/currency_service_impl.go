package currency

import (
	"context"
	"fmt"
	"medflow-service/internal/app/config"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/exceptions"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const rateCacheTTL = 15 * time.Minute

var (
	currencyServiceInstance contracts.CurrencyService
	onceCurrencyService     sync.Once
)

// currencyService resolves exchange rates into the ledger currency. Rates are
// cached in redis under "fx_rate:FROM_TO"; when nothing is cached the
// configured static table is the source of truth. A pair present in neither
// place is an error, never a silent 1.0.
type currencyService struct {
	redisRepo      contracts.RedisRepository
	internalConfig *config.InternalConfig
	Log            *zap.Logger
}

func NewCurrencyService(redisRepo contracts.RedisRepository, internalConfig *config.InternalConfig, logger *zap.Logger) contracts.CurrencyService {
	onceCurrencyService.Do(func() {
		instance := &currencyService{
			redisRepo:      redisRepo,
			internalConfig: internalConfig,
			Log:            logger,
		}
		currencyServiceInstance = instance
	})
	return currencyServiceInstance
}

func (s *currencyService) Rate(ctx context.Context, from, to string) (float64, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	if from == to {
		return 1.0, nil
	}

	pair := fmt.Sprintf("%s_%s", from, to)
	cacheKey := fmt.Sprintf("fx_rate:%s", pair)

	cached, err := s.redisRepo.Get(ctx, cacheKey)
	if err != nil {
		s.Log.Warn("currencyService.Rate cache lookup failed, falling back to static table",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingRedisKey, cacheKey),
			zap.Error(err),
		)
	}
	if cached != "" {
		rate, parseErr := strconv.ParseFloat(cached, 64)
		if parseErr == nil && rate > 0 {
			return rate, nil
		}
		s.Log.Warn("currencyService.Rate discarding unparseable cached rate",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingRedisKey, cacheKey),
		)
	}

	rate, ok := s.internalConfig.Billing.StaticRates[pair]
	if !ok || rate <= 0 {
		s.Log.Error("currencyService.Rate no rate available for pair",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingCurrencyKey, pair),
		)
		return 0, exceptions.ErrExchangeRateUnavailable(fmt.Errorf("no exchange rate for %s", pair))
	}

	if cacheErr := s.redisRepo.Set(ctx, cacheKey, rate, rateCacheTTL); cacheErr != nil {
		s.Log.Warn("currencyService.Rate failed to cache static rate",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingRedisKey, cacheKey),
			zap.Error(cacheErr),
		)
	}
	return rate, nil
}
