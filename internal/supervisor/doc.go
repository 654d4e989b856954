// Tempo - Personal Productivity Realtime Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tempo

/*
Package supervisor runs the long-lived Tempo services under suture v4.

The tree has two layers so a failing realtime session never takes the
local status surface down with it:

	RootSupervisor ("tempo")
	├── RealtimeSupervisor ("realtime-layer")
	│   └── SessionService (transport.Client.Run)
	└── SurfaceSupervisor ("surface-layer")
	    └── status.Server

Crashed services restart with suture's backoff. A session that fails
authentication returns suture.ErrDoNotRestart, since retrying the same
credentials cannot succeed.

Supervisor events are logged through sutureslog, bridged to zerolog by
logging.NewSlogLogger.
*/
package supervisor
