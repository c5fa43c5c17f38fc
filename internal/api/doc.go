// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

/*
Package api provides the HTTP surface for Powerhour.

Every response uses the models.APIResponse envelope. Metadata.Source names
the tier that answered a read ("remote" or "local") and
Metadata.RemoteStatus reports how a write fared against the remote tier.

Routes (all under /api/v1):

  - POST   /shared                   save a shared playlist
  - GET    /shared?category=&limit=  community listing
  - GET    /shared/mine              the caller's shared playlists
  - GET    /shared/code/{code}       resolve a share code
  - POST   /shared/import/{code}     import into the local library
  - PATCH  /shared/{id}              rename
  - POST   /shared/{id}/unlist       remove from the community listing
  - DELETE /shared/{id}              delete from both tiers
  - POST   /shared/{id}/ratings      rate (accounts only)
  - POST   /shared/{id}/downloads    record a download
  - POST   /library/{id}/share       share a library playlist
  - GET    /migration/status         what a migration would do
  - POST   /migration/run            migrate everything
  - POST   /migration/{id}           migrate one record
  - POST   /auth/anonymous           sign the local profile in anonymously
  - GET    /health, /health/live, /health/ready

/metrics serves Prometheus metrics outside the versioned prefix.

Identity:

A request carrying "Authorization: Bearer <jwt>" acts as the token's
subject. Any other request acts as the installation's local profile. An
invalid token is rejected with 401 rather than falling back.

Error mapping:

	validation failure         400 VALIDATION_ERROR
	invalid bearer token       401 AUTHENTICATION_ERROR
	ownership or account check 403 OWNERSHIP_DENIED
	unknown code or id         404 NOT_FOUND
	remote tier required       503 REMOTE_UNAVAILABLE
	anything else              500 INTERNAL_ERROR
*/
package api
