// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	chatcore "github.com/dalemusser/studychat/internal/app/chat"
	attachmentsfeature "github.com/dalemusser/studychat/internal/app/features/attachments"
	chatfeature "github.com/dalemusser/studychat/internal/app/features/chat"
	groupsfeature "github.com/dalemusser/studychat/internal/app/features/groups"
	healthfeature "github.com/dalemusser/studychat/internal/app/features/health"
	identityfeature "github.com/dalemusser/studychat/internal/app/features/identity"
	groupstore "github.com/dalemusser/studychat/internal/app/store/groups"
	membershipstore "github.com/dalemusser/studychat/internal/app/store/memberships"
	messagestore "github.com/dalemusser/studychat/internal/app/store/messages"
	userstore "github.com/dalemusser/studychat/internal/app/store/users"
	"github.com/dalemusser/studychat/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Runtime pieces built in BuildHandler that Shutdown must tear down. The
// lifecycle hooks share no state otherwise.
var (
	chatBroadcaster *chatcore.Broadcaster
	chatJanitor     *chatcore.PresenceJanitor
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. StudyChat wires the in-memory realtime
// layer (broadcaster, presence tracker, janitor), the Mongo-backed stores,
// and the chat service, then mounts the JSON feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Session cookies are signed with the app key; secure in production.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return nil, err
	}

	// Durable stores.
	groups := groupstore.New(deps.MongoDatabase)
	memberships := membershipstore.New(deps.MongoDatabase)
	messages := messagestore.New(deps.MongoDatabase)
	users := userstore.New(deps.MongoDatabase)

	// Realtime layer. The janitor expires typing indicators that never see
	// an explicit clear, broadcasting the presence change as it sweeps.
	chatBroadcaster = chatcore.NewBroadcaster(appCfg.SubscriberBuffer, logger)
	presence := chatcore.NewPresenceTracker(appCfg.TypingTTL, nil)
	chatJanitor = chatcore.NewPresenceJanitor(presence, chatBroadcaster, logger, 0)
	chatJanitor.Start()

	svc := chatcore.NewService(groups, memberships, messages, chatBroadcaster, presence, appCfg.TypingRateLimit, logger)

	// Attachment storage (local disk, served back through the fileserver).
	store, err := storage.NewLocal(storage.LocalConfig{BasePath: appCfg.StorageLocalPath})
	if err != nil {
		logger.Error("local storage init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if signed in.
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Identity (session establishment)
	identityHandler := identityfeature.NewHandler(users, logger)
	r.Mount("/session", identityfeature.Routes(identityHandler))

	// Groups and membership
	groupsHandler := groupsfeature.NewHandler(svc, deps.MongoDatabase, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler))

	// Chat: history, send, reactions, typing, websocket stream
	chatHandler := chatfeature.NewHandler(svc, logger)
	r.Mount("/chat", chatfeature.Routes(chatHandler))

	// Attachment uploads, plus serving the stored files
	attachmentsHandler := attachmentsfeature.NewHandler(store, appCfg.StorageLocalURL, logger)
	r.Mount("/attachments", attachmentsfeature.Routes(attachmentsHandler))
	r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))

	return r, nil
}
