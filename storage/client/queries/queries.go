// Package queries holds the SQL queries used by the storage client.
package queries

const (
	ChannelInsert = `
		INSERT INTO channels.channels (id, deposit, leader, leader_fee, follower, follower_fee, valid_until)
			VALUES ($1::text, $2::numeric, $3::text, $4::numeric, $5::text, $6::numeric, $7::timestamptz)`

	Channel = `
		SELECT id, deposit, leader, leader_fee, follower, follower_fee, valid_until
			FROM channels.channels
			WHERE id = $1::text`

	Channels = `
		SELECT id, deposit, leader, leader_fee, follower, follower_fee, valid_until
			FROM channels.channels
		ORDER BY created_at DESC, id
		LIMIT $1::bigint
		OFFSET $2::bigint`

	ActiveChannels = `
		SELECT id, deposit, leader, leader_fee, follower, follower_fee, valid_until
			FROM channels.channels
			WHERE valid_until > now()
		ORDER BY last_tick_at ASC NULLS FIRST, id
		LIMIT $1::bigint`

	ActiveChannelCount = `
		SELECT count(*)
			FROM channels.channels
			WHERE valid_until > now()`

	ChannelTickDone = `
		UPDATE channels.channels
			SET last_tick_at = now()
			WHERE id = $1::text`

	ValidatorMessageInsert = `
		INSERT INTO channels.validator_messages (channel_id, from_validator, received, type, state_root, message)
			VALUES ($1::text, $2::text, $3::bigint, $4::text, $5::text, $6::jsonb)`

	ValidatorMessages = `
		SELECT channel_id, from_validator, received, message
			FROM channels.validator_messages
			WHERE channel_id = $1::text AND
					($2::text IS NULL OR from_validator = $2::text) AND
					($3::text IS NULL OR type = $3::text) AND
					($4::text IS NULL OR state_root = $4::text)
		ORDER BY received DESC
		LIMIT $5::bigint`

	LatestReceived = `
		SELECT COALESCE(max(received), 0)
			FROM channels.validator_messages
			WHERE channel_id = $1::text`

	MessageLogHeight = `
		SELECT COALESCE(max(received), 0)
			FROM channels.validator_messages`

	LatestTick = `
		SELECT max(last_tick_at)
			FROM channels.channels`
)
