// Package games holds design notes for the portal's game surfaces.
package games

// Chess (live, served at /chess)
// - Two players per room, exchanging positions over a websocket
// - The server coordinates seats and relays state; it does not know the rules
// - Move legality is validated client-side by the rules engine; an engine
//   opponent would be a separate move-suggestion service, consumed async
// - Latest position is cached per room so a rejoining player can resume
//
// How to play
// - Visiting /chess redirects to a fresh room; share the URL (or its QR code)
// - First arrival is assigned white, second black; later arrivals are turned away
// - Closing the tab frees the seat for someone else
//
// Catalog placeholders (static tiles on the home page for now):
// - Ludo: four seats, dice rolls would need server-side arbitration
// - Angry Birds: single player, no coordinator involvement
