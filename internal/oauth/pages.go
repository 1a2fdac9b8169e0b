// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package oauth

// Static pages shown in the browser after the callback lands. They carry no
// dynamic content beyond an optional error description, and tell the user to
// return to the app.

const pageSuccess = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Planly - Signed In</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; background: #1a1b26; color: #c0caf5;
         display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
  .card { text-align: center; padding: 2rem 3rem; background: #24283b; border-radius: 12px; }
  h1 { color: #9ece6a; font-size: 1.4rem; }
  p { color: #a9b1d6; }
</style>
</head>
<body>
<div class="card">
  <h1>Signed in</h1>
  <p>You can close this tab and return to Planly.</p>
</div>
</body>
</html>`

const pageError = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Planly - Sign In Failed</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; background: #1a1b26; color: #c0caf5;
         display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
  .card { text-align: center; padding: 2rem 3rem; background: #24283b; border-radius: 12px; }
  h1 { color: #f7768e; font-size: 1.4rem; }
  p { color: #a9b1d6; }
</style>
</head>
<body>
<div class="card">
  <h1>Sign in failed</h1>
  <p>{{.Description}}</p>
  <p>Close this tab and try again from Planly.</p>
</div>
</body>
</html>`

const pageAlreadyDone = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Planly</title></head>
<body><p>This sign-in attempt has already completed. You can close this tab.</p></body>
</html>`
