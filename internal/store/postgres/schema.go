package postgres

import "context"

// EnsureSchema creates the tables and indexes the store expects. All
// statements are idempotent, so it is safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			location VARCHAR(255),
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			timezone VARCHAR(100),
			capacity INTEGER,
			public BOOLEAN DEFAULT FALSE,
			status VARCHAR(50) DEFAULT 'draft',
			tags TEXT[] DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS attendees (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255),
			company VARCHAR(255),
			job_title VARCHAR(255),
			interests TEXT[] DEFAULT '{}',
			engagement_score INTEGER DEFAULT 0,
			last_activity_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS registrations (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			attendee_id UUID NOT NULL REFERENCES attendees(id) ON DELETE CASCADE,
			attended BOOLEAN DEFAULT FALSE,
			duration_minutes INTEGER,
			feedback TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			attended_at TIMESTAMPTZ,
			UNIQUE(event_id, attendee_id)
		);

		CREATE TABLE IF NOT EXISTS templates (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			variables TEXT[] DEFAULT '{}',
			active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS campaigns (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			event_id UUID REFERENCES events(id) ON DELETE SET NULL,
			template_id UUID REFERENCES templates(id) ON DELETE SET NULL,
			subject TEXT,
			body TEXT,
			status VARCHAR(50) DEFAULT 'draft',
			scheduled_at TIMESTAMPTZ,
			sent_at TIMESTAMPTZ,
			target_interests TEXT[] DEFAULT '{}',
			target_min_score INTEGER DEFAULT 0,
			target_max_score INTEGER DEFAULT 0,
			target_attendance VARCHAR(50) DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS sends (
			id UUID PRIMARY KEY,
			campaign_id UUID NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			attendee_id UUID NOT NULL REFERENCES attendees(id) ON DELETE CASCADE,
			sent_at TIMESTAMPTZ DEFAULT NOW(),
			opened_at TIMESTAMPTZ,
			clicked_at TIMESTAMPTZ,
			bounced BOOLEAN DEFAULT FALSE,
			unsubscribed BOOLEAN DEFAULT FALSE
		);

		CREATE TABLE IF NOT EXISTS analytics_events (
			id UUID PRIMARY KEY,
			type VARCHAR(50) NOT NULL,
			attendee_id UUID,
			event_id UUID,
			campaign_id UUID,
			metadata JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_campaigns_due ON campaigns(status, scheduled_at);
		CREATE INDEX IF NOT EXISTS idx_registrations_event ON registrations(event_id);
		CREATE INDEX IF NOT EXISTS idx_sends_campaign ON sends(campaign_id);
		CREATE INDEX IF NOT EXISTS idx_sends_attendee ON sends(attendee_id);
		CREATE INDEX IF NOT EXISTS idx_analytics_attendee ON analytics_events(attendee_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_analytics_created ON analytics_events(created_at);
	`)
	return err
}
