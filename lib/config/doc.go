// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the CI service configuration.
//
// Configuration comes from one file, named either by the
// BUREAU_CI_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). With neither, the service runs on [Default]. There
// is no search path and no per-key environment override: the file is
// the single source of truth. Secrets (the API token and the webhook
// secret) never live in the file; it only names the environment
// variables that hold them.
//
// Files are YAML, or JSON with comments when the name ends in .json or
// .jsonc. The file may carry development, staging, and production
// sections that override the base values when [Config].Environment
// matches.
//
// Path fields expand ${HOME}, ${BUREAU_CI_ROOT}, and ${VAR:-default}
// after loading.
package config
