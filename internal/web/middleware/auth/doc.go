// Package auth provides bearer token authentication middleware for the web application.
//
// The middleware reads the Authorization header, runs it through the
// authenticator and adds the resolved user and its authorization to
// fiber.Locals for use in handlers.
//
// The middleware performs the following tasks:
//   - Lets requests without bearer credentials through for other mechanisms
//   - Answers rejected credentials with 401 and a WWW-Authenticate challenge
//   - Stores the user, authorization and verified token in fiber.Locals
//
// Usage:
//
//	api := app.Group("/api/v1", authmiddleware.New(authenticator), authmiddleware.Require(authenticator))
package auth
