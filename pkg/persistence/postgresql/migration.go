package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Bots and the identities they talk to
			CREATE TABLE bots (
				id UUID PRIMARY KEY,
				token TEXT NOT NULL,
				external_id BIGINT NOT NULL,
				username VARCHAR(255) NOT NULL DEFAULT '',
				display_name VARCHAR(255) NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_bots_external_id ON bots(external_id);
			CREATE INDEX idx_bots_is_active ON bots(is_active);

			CREATE TABLE remote_users (
				id UUID PRIMARY KEY,
				external_id BIGINT NOT NULL UNIQUE,
				first_name VARCHAR(255) NOT NULL DEFAULT '',
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				username VARCHAR(255) NOT NULL DEFAULT '',
				language_code VARCHAR(16) NOT NULL DEFAULT '',
				start_param VARCHAR(255),
				is_bot BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE conversations (
				id UUID PRIMARY KEY,
				external_chat_id BIGINT NOT NULL,
				bot_id UUID NOT NULL REFERENCES bots(id) ON DELETE CASCADE,
				user_id UUID REFERENCES remote_users(id) ON DELETE SET NULL,
				kind VARCHAR(32) NOT NULL DEFAULT 'private',
				title VARCHAR(255) NOT NULL DEFAULT '',
				last_message_id VARCHAR(255),
				last_message_at TIMESTAMP WITH TIME ZONE,
				is_bot_blocked BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (external_chat_id, bot_id)
			);

			CREATE INDEX idx_conversations_bot_id ON conversations(bot_id);

			CREATE TABLE categories (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				color VARCHAR(32) NOT NULL DEFAULT ''
			);

			CREATE TABLE conversation_categories (
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				category_id UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
				PRIMARY KEY (conversation_id, category_id)
			);
		`,
		2: `
			-- Workflow graphs
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_is_active ON workflows(is_active);

			CREATE TABLE workflow_bots (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				bot_id UUID NOT NULL,
				PRIMARY KEY (workflow_id, bot_id)
			);

			CREATE INDEX idx_workflow_bots_bot_id ON workflow_bots(bot_id);

			CREATE TABLE workflow_nodes (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				node_type VARCHAR(255) NOT NULL,
				config JSONB DEFAULT '{}',
				position_x DOUBLE PRECISION DEFAULT 0,
				position_y DOUBLE PRECISION DEFAULT 0,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE TABLE workflow_connections (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				source_node_id VARCHAR(255) NOT NULL,
				source_handle VARCHAR(255) NOT NULL DEFAULT '',
				target_node_id VARCHAR(255) NOT NULL,
				target_handle VARCHAR(255) NOT NULL DEFAULT '',
				PRIMARY KEY (workflow_id, id)
			);
		`,
		3: `
			-- Conversation transcript
			CREATE TABLE messages (
				id UUID PRIMARY KEY,
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				bot_id UUID NOT NULL,
				direction VARCHAR(16) NOT NULL CHECK (direction IN ('incoming', 'outgoing')),
				external_message_id BIGINT NOT NULL DEFAULT 0,
				kind VARCHAR(32) NOT NULL DEFAULT '',
				text TEXT NOT NULL DEFAULT '',
				file_ref TEXT NOT NULL DEFAULT '',
				workflow_id VARCHAR(255) NOT NULL DEFAULT '',
				node_id VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_messages_conversation_id ON messages(conversation_id, created_at);
		`,
	}
}
