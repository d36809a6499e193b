package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/corebanking/digibank/internal/api"
	"github.com/corebanking/digibank/internal/config"
	"github.com/corebanking/digibank/internal/service"
	"github.com/corebanking/digibank/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := newLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	st, err := store.New(context.Background(), cfg.DBSource)
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer st.Close()

	payees := service.NewPayeeService(st, log)
	auth := service.NewAuthService(st, cfg.JWTSecret, cfg.JWTIssuer,
		time.Duration(cfg.JWTExpirySecs)*time.Second, cfg.DefaultCurrency, log)
	accounts := service.NewAccountService(st)
	transfers := service.NewTransferService(st, payees, log)

	handler := api.NewHandler(auth, accounts, payees, transfers)
	router := api.NewRouter(handler, auth, log)

	log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
