package main

import (
	"log"
	"os"

	oidc "github.com/legit-games/oidc-core"
	"github.com/legit-games/oidc-core/migrate"
	"github.com/legit-games/oidc-core/models"
	"github.com/legit-games/oidc-core/seed"
	"github.com/legit-games/oidc-core/server"
	"github.com/legit-games/oidc-core/services"
	"github.com/legit-games/oidc-core/store"
	"github.com/legit-games/oidc-core/validation"
)

func main() {
	if err := migrate.RunFromEnv(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := seed.RunFromEnv(); err != nil {
		log.Fatalf("seed: %v", err)
	}

	cfg := server.GetConfig()
	options := cfg.EngineOptions()

	backend, err := buildBackend(cfg)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}

	srv := server.NewServer(options, server.NewConfig(), backend)
	engine := server.NewGinEngine(srv)

	log.Printf("listening on %s (env=%s issuer=%s)", cfg.Listen, cfg.Env, options.IssuerURI)
	if err := engine.Run(cfg.Listen); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func buildBackend(cfg *server.AppConfig) (*server.Backend, error) {
	backend := &server.Backend{}

	switch {
	case cfg.Database.DSN != "":
		grants, err := store.OpenDBGrantStore(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		backend.Grants = grants
		backend.Clients = store.NewDBClientStore(grants.DB)
	case cfg.Valkey.Addr != "":
		grants, err := store.NewValkeyGrantStore(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			return nil, err
		}
		backend.Grants = grants
	}

	if cfg.Valkey.Addr != "" {
		cache, err := store.NewValkeyCache(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			return nil, err
		}
		backend.Cache = cache
	}

	if cfg.SigningKeyPEMFile != "" {
		pemBytes, err := os.ReadFile(cfg.SigningKeyPEMFile)
		if err != nil {
			return nil, err
		}
		keys, err := services.NewRSASigningCredentialStoreFromPEM(pemBytes, "")
		if err != nil {
			return nil, err
		}
		backend.Keys = keys
	} else {
		keys, err := services.NewGeneratedSigningCredentialStore()
		if err != nil {
			return nil, err
		}
		backend.Keys = keys
		log.Printf("no signing key configured, generated an ephemeral RSA key")
	}

	// Without a database the client and resource stores hold a dev-only
	// seed so the server is usable out of the box.
	if backend.Clients == nil {
		backend.Clients = store.NewClientStore(devClients()...)
	}
	backend.Resources = devResources()

	return backend, nil
}

func devClients() []*models.Client {
	client := models.NewClient("dev-client")
	client.AllowedGrantTypes = models.GrantTypes{oidc.AuthorizationCode, oidc.RefreshToken, oidc.ClientCredentials}
	client.ClientSecrets = []models.Secret{models.NewSharedSecret(validation.HashSharedSecret("dev-secret"))}
	client.RedirectURIs = []string{"http://localhost:9009/callback"}
	client.AllowedScopes = []string{oidc.ScopeOpenID, "profile", "api"}
	client.AllowOfflineAccess = true
	return []*models.Client{client}
}

func devResources() *store.InMemoryResourceStore {
	return store.NewResourceStore(
		[]*models.IdentityResource{
			models.NewIdentityResource("openid"),
			models.NewIdentityResource("profile", "name"),
		},
		[]*models.ApiResource{models.NewApiResource("urn:api", "api")},
		[]*models.ApiScope{models.NewApiScope("api")},
	)
}
