// Package forecast is the websocket client for the external consumption
// forecasting service. Predictions are request/response; feedback with
// sealed hourly consumption is fire-and-forget.
package forecast
