package usecase_test

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/Nzyazin/miniwallet/internal/core/repository/memory"
	"github.com/Nzyazin/miniwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.lifecycle.Initialize(ctx, "scenario")
	require.NoError(t, err)
	owner := res.OwnerID
	assert.True(t, f.balance(t, owner).IsZero())

	_, err = f.lifecycle.Enable(ctx, owner, time.Now())
	require.NoError(t, err)

	credited, err := f.engine.Credit(ctx, owner, dec("50"), "r1", time.Now())
	require.NoError(t, err)
	assert.True(t, credited.Balance.Equal(dec("50")))
	assert.Equal(t, models.DirectionCredit, credited.Transaction.Direction)
	assert.Equal(t, "r1", credited.Transaction.ReferenceID)

	debited, err := f.engine.Debit(ctx, owner, dec("20"), "r2", time.Now())
	require.NoError(t, err)
	assert.True(t, debited.Balance.Equal(dec("30")))

	_, err = f.engine.Credit(ctx, owner, dec("50"), "r1", time.Now())
	assert.ErrorIs(t, err, usecase.ErrDuplicateTransaction)
	assert.True(t, f.balance(t, owner).Equal(dec("30")))

	_, err = f.engine.Debit(ctx, owner, dec("1000"), "r3", time.Now())
	assert.ErrorIs(t, err, usecase.ErrInsufficientFunds)
	assert.True(t, f.balance(t, owner).Equal(dec("30")))
}

func TestIdempotencyAcrossDirections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.enabledOwner(t)

	_, err := f.engine.Credit(ctx, owner, dec("10"), "same", time.Now())
	require.NoError(t, err)

	_, err = f.engine.Debit(ctx, owner, dec("5"), "same", time.Now())
	assert.ErrorIs(t, err, usecase.ErrDuplicateTransaction)
	assert.True(t, f.balance(t, owner).Equal(dec("10")))
}

func TestValidationPrecedence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	disabled, err := f.lifecycle.Initialize(ctx, "precedence-disabled")
	require.NoError(t, err)

	enabled := f.enabledOwner(t)
	_, err = f.engine.Credit(ctx, enabled, dec("10"), "prec-seed", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name   string
		owner  uuid.UUID
		debit  bool
		amount string
		ref    string
		want   error
	}{
		{"zero amount beats missing wallet", uuid.New(), false, "0", "p1", usecase.ErrInvalidAmount},
		{"negative amount beats disabled", disabled.OwnerID, true, "-5", "p2", usecase.ErrInvalidAmount},
		{"three decimals", enabled, false, "1.005", "p3", usecase.ErrInvalidAmount},
		{"above max amount", enabled, false, "1000000000000.01", "p3a", usecase.ErrInvalidAmount},
		{"int64 overflow amount", enabled, false, "184467440737095521.16", "p3b", usecase.ErrInvalidAmount},
		{"amount beats empty reference", enabled, false, "0", "", usecase.ErrInvalidAmount},
		{"empty reference", enabled, false, "1", " ", usecase.ErrInvalidInput},
		{"missing wallet", uuid.New(), true, "1", "p4", usecase.ErrWalletNotFound},
		{"disabled beats funds", disabled.OwnerID, true, "1000", "p5", usecase.ErrWalletDisabled},
		{"disabled credit", disabled.OwnerID, false, "1", "p6", usecase.ErrWalletDisabled},
		{"funds beat duplicate reference", enabled, true, "1000", "prec-seed", usecase.ErrInsufficientFunds},
		{"duplicate reference", enabled, true, "1", "prec-seed", usecase.ErrDuplicateTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := f.engine.Credit
			if tt.debit {
				call = f.engine.Debit
			}
			res, err := call(ctx, tt.owner, dec(tt.amount), tt.ref, time.Now())
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}

	assert.True(t, f.balance(t, enabled).Equal(dec("10")), "failed calls leave the balance alone")
	txs, err := f.query.ListTransactions(ctx, enabled, 0, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestDebitToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.enabledOwner(t)

	_, err := f.engine.Credit(ctx, owner, dec("0.01"), "cent-in", time.Now())
	require.NoError(t, err)
	res, err := f.engine.Debit(ctx, owner, dec("0.01"), "cent-out", time.Now())
	require.NoError(t, err)
	assert.True(t, res.Balance.IsZero())

	_, err = f.engine.Debit(ctx, owner, dec("0.01"), "cent-again", time.Now())
	assert.ErrorIs(t, err, usecase.ErrInsufficientFunds)
}

func TestConcurrentDebitRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.enabledOwner(t)
	_, err := f.engine.Credit(ctx, owner, dec("100"), "race-seed", time.Now())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	start := make(chan struct{})
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = f.engine.Debit(ctx, owner, dec("60"), fmt.Sprintf("race-%d", i), time.Now())
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		if assert.ErrorIs(t, err, usecase.ErrInsufficientFunds) {
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.True(t, f.balance(t, owner).Equal(dec("40")))
}

func TestConcurrentSameReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.enabledOwner(t)

	const goroutines = 50
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		applied    int
		duplicates int
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Credit(ctx, owner, dec("5"), "replayed", time.Now())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				applied++
			} else if assert.ErrorIs(t, err, usecase.ErrDuplicateTransaction) {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, goroutines-1, duplicates)
	assert.True(t, f.balance(t, owner).Equal(dec("5")))
}

func TestBalanceSumInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owners := []uuid.UUID{f.enabledOwner(t), f.enabledOwner(t), f.enabledOwner(t)}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(g)))
			for i := 0; i < 100; i++ {
				owner := owners[rng.Intn(len(owners))]
				amount := decimal.New(int64(rng.Intn(5000)+1), -2)
				ref := fmt.Sprintf("inv-%d-%d", g, i)
				var err error
				if rng.Intn(2) == 0 {
					_, err = f.engine.Credit(ctx, owner, amount, ref, time.Now())
				} else {
					_, err = f.engine.Debit(ctx, owner, amount, ref, time.Now())
				}
				if err != nil {
					assert.ErrorIs(t, err, usecase.ErrInsufficientFunds)
				}
			}
		}(g)
	}
	wg.Wait()

	for _, owner := range owners {
		balance := f.balance(t, owner)
		assert.False(t, balance.IsNegative())

		txs, err := f.query.ListTransactions(ctx, owner, usecase.MaxPageLimit, 0)
		require.NoError(t, err)
		sum := decimal.Zero
		offset := 0
		for len(txs) > 0 {
			for _, tx := range txs {
				sum = sum.Add(tx.Direction.Signed(tx.Amount))
			}
			offset += len(txs)
			txs, err = f.query.ListTransactions(ctx, owner, usecase.MaxPageLimit, offset)
			require.NoError(t, err)
		}
		assert.True(t, sum.Equal(balance), "sum %s balance %s", sum, balance)
	}
}

func TestApplyStorageFailure(t *testing.T) {
	store := memory.NewWalletStore()
	f := newFixtureWith(t, store, usecase.NewNoopMetrics())
	owner := f.enabledOwner(t)

	engine := usecase.NewWalletUsecase(brokenStore{store}, logger.NewNop(), usecase.NewNoopMetrics())
	_, err := engine.Credit(context.Background(), owner, dec("10"), "down", time.Now())
	assert.ErrorIs(t, err, usecase.ErrStorage)
	assert.ErrorIs(t, err, errStoreDown)
	assert.True(t, f.balance(t, owner).IsZero())

	// the reference was never consumed
	_, err = f.engine.Credit(context.Background(), owner, dec("10"), "down", time.Now())
	assert.NoError(t, err)
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := usecase.NewPrometheusMetrics(reg)
	f := newFixtureWith(t, memory.NewWalletStore(), metrics)
	ctx := context.Background()
	owner := f.enabledOwner(t)

	_, err := f.engine.Credit(ctx, owner, dec("12.50"), "m1", time.Now())
	require.NoError(t, err)
	_, err = f.engine.Credit(ctx, owner, dec("1"), "m1", time.Now())
	require.Error(t, err)
	_, err = f.engine.Debit(ctx, owner, dec("100"), "m2", time.Now())
	require.Error(t, err)

	expected := `
# HELP miniwallet_operations_total Wallet operations by result code
# TYPE miniwallet_operations_total counter
miniwallet_operations_total{operation="credit",result="duplicate_transaction"} 1
miniwallet_operations_total{operation="credit",result="success"} 1
miniwallet_operations_total{operation="debit",result="insufficient_funds"} 1
miniwallet_operations_total{operation="enable",result="success"} 1
miniwallet_operations_total{operation="init",result="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "miniwallet_operations_total"))

	applied := `
# HELP miniwallet_applied_amount_total Sum of applied transaction amounts
# TYPE miniwallet_applied_amount_total counter
miniwallet_applied_amount_total{direction="credit"} 12.5
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(applied), "miniwallet_applied_amount_total"))
}
